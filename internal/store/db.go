package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/sweep"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateSlug = errors.New("lesson slug already exists")
	ErrNoConfig      = errors.New("lesson has no config")
)

// DB is the lesson catalog and sweep history.
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	SaveLesson(ctx context.Context, l *Lesson) error
	GetLesson(ctx context.Context, id string) (*Lesson, error)
	GetLessonBySlug(ctx context.Context, slug string) (*Lesson, error)
	ListLessons(ctx context.Context, q LessonsQuery) ([]Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
	SaveSweepReport(ctx context.Context, r *SweepReport) error
	ListSweepReports(ctx context.Context, lessonID string, limit int) ([]SweepReport, error)
}

// Lesson is a stored lesson config.
type Lesson struct {
	ID        string         `json:"id"`
	Slug      string         `json:"slug"`
	Title     string         `json:"title"`
	Type      lesson.Type    `json:"interactionType"`
	Builtin   bool           `json:"builtin"`
	Config    *lesson.Config `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LessonsQuery filters ListLessons.
type LessonsQuery struct {
	Type   lesson.Type `json:"type,omitempty"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// SweepReport is one stored sweep run.
type SweepReport struct {
	ID        string        `json:"id"`
	LessonID  string        `json:"lesson_id"`
	Metric    string        `json:"metric"`
	Report    *sweep.Report `json:"report"`
	CreatedAt time.Time     `json:"created_at"`
}
