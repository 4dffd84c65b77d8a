package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/sweep"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "lessons.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != len(migrations) {
		t.Errorf("schema_migrations has %d rows, want %d", n, len(migrations))
	}
}

func TestSaveAndGetLesson(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	l := &Lesson{Config: lesson.DerivativeSine()}
	if err := db.SaveLesson(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}
	if l.ID == "" || l.Slug != "secant-sine" || l.Type != lesson.TypeDerivative {
		t.Fatalf("saved lesson = %+v", l)
	}

	got, err := db.GetLesson(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Config.System.Function != "sin(x)" || got.Config.ID != l.ID {
		t.Errorf("config round trip lost data: %+v", got.Config)
	}
	bySlug, err := db.GetLessonBySlug(ctx, "secant-sine")
	if err != nil || bySlug.ID != l.ID {
		t.Errorf("by slug = %+v, %v", bySlug, err)
	}

	l.Title = "Renamed"
	if err := db.SaveLesson(ctx, l); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = db.GetLesson(ctx, l.ID)
	if got.Title != "Renamed" {
		t.Errorf("title = %q", got.Title)
	}

	dup := &Lesson{Config: lesson.DerivativeSine()}
	if err := db.SaveLesson(ctx, dup); !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("duplicate slug = %v", err)
	}
	if err := db.SaveLesson(ctx, &Lesson{}); !errors.Is(err, ErrNoConfig) {
		t.Errorf("missing config = %v", err)
	}
	if _, err := db.GetLesson(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing lesson = %v", err)
	}
}

func TestSeedAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := Seed(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(lesson.ShippedSlugs()) {
		t.Errorf("seeded %d lessons", n)
	}
	if again, _ := Seed(ctx, db); again != 0 {
		t.Errorf("second seed added %d", again)
	}

	all, err := db.ListLessons(ctx, LessonsQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != n {
		t.Errorf("list = %d lessons", len(all))
	}
	for _, l := range all {
		if !l.Builtin {
			t.Errorf("%s should be builtin", l.Slug)
		}
	}
	splits, _ := db.ListLessons(ctx, LessonsQuery{Type: lesson.TypeSplit})
	if len(splits) != 3 {
		t.Errorf("split lessons = %d", len(splits))
	}
	page, _ := db.ListLessons(ctx, LessonsQuery{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].ID != all[1].ID {
		t.Errorf("paging returned %d lessons", len(page))
	}
}

func TestSweepReportsFollowLesson(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	l := &Lesson{Config: lesson.DefaultSplit()}
	if err := db.SaveLesson(ctx, l); err != nil {
		t.Fatal(err)
	}
	rep, err := sweep.Run(ctx, lesson.TypeSplit, l.Config, sweep.Request{Values: sweep.InvariantGrid()}, sweep.Options{})
	if err != nil {
		t.Fatal(err)
	}
	r := &SweepReport{LessonID: l.ID, Report: rep}
	if err := db.SaveSweepReport(ctx, r); err != nil {
		t.Fatalf("save report: %v", err)
	}
	if r.Metric != "total" {
		t.Errorf("metric = %q", r.Metric)
	}
	if err := db.SaveSweepReport(ctx, &SweepReport{LessonID: "nope", Report: rep}); !errors.Is(err, ErrNotFound) {
		t.Errorf("report for missing lesson = %v", err)
	}

	list, err := db.ListSweepReports(ctx, l.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || len(list[0].Report.Points) != 7 {
		t.Fatalf("reports = %+v", list)
	}

	if err := db.DeleteLesson(ctx, l.ID); err != nil {
		t.Fatal(err)
	}
	if list, _ := db.ListSweepReports(ctx, l.ID, 0); len(list) != 0 {
		t.Errorf("reports survived lesson deletion: %d", len(list))
	}
	if err := db.DeleteLesson(ctx, l.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}
