package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/MJE43/lessonviz/internal/lesson"
)

// Seed stores every shipped lesson whose slug is not yet in db. It returns
// the number of lessons added.
func Seed(ctx context.Context, db DB) (int, error) {
	added := 0
	for _, slug := range lesson.ShippedSlugs() {
		_, err := db.GetLessonBySlug(ctx, slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return added, err
		}
		l := &Lesson{Builtin: true, Config: lesson.Shipped()[slug]}
		if err := db.SaveLesson(ctx, l); err != nil {
			return added, errors.Wrapf(err, "seed %s", slug)
		}
		added++
	}
	return added, nil
}
