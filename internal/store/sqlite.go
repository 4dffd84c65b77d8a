package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/lessonviz/internal/lesson"
)

// SQLiteDB implements DB on SQLite.
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens the database at path and enables WAL. Call Migrate
// before use.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable WAL mode")
	}
	return &SQLiteDB{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteDB) Close() error { return s.db.Close() }

type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order, each once. Append only.
var migrations = []migration{
	{1, "lessons", []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			interaction_type TEXT NOT NULL,
			builtin INTEGER NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_type ON lessons(interaction_type, slug)`,
	}},
	{2, "sweep reports", []string{
		`CREATE TABLE IF NOT EXISTS sweep_reports (
			id TEXT PRIMARY KEY,
			lesson_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			points INTEGER NOT NULL,
			failures INTEGER NOT NULL DEFAULT 0,
			min_metric REAL,
			max_metric REAL,
			mean_metric REAL,
			report_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY(lesson_id) REFERENCES lessons(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sweep_reports_lesson ON sweep_reports(lesson_id, created_at DESC)`,
	}},
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}
	applied := make(map[int]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return errors.Wrap(err, "read schema_migrations")
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan schema_migrations")
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return errors.Wrapf(err, "migration %d (%s)", m.version, m.name)
		}
	}
	return nil
}

func (s *SQLiteDB) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range m.stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations(version, name, applied_at) VALUES(?, ?, ?)`,
		m.version, m.name, s.now()); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SaveLesson inserts or replaces a lesson by id. An empty id gets a new
// uuid; slug, title and type are taken from the config when unset.
func (s *SQLiteDB) SaveLesson(ctx context.Context, l *Lesson) error {
	if l.Config == nil {
		return ErrNoConfig
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Slug == "" {
		l.Slug = l.Config.Slug
	}
	if l.Slug == "" {
		l.Slug = l.ID
	}
	if l.Title == "" {
		l.Title = l.Config.Title
	}
	l.Type = l.Config.InteractionType

	cfg := lesson.Clone(l.Config)
	cfg.ID, cfg.Slug, cfg.Title = l.ID, l.Slug, l.Title
	b, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode lesson config")
	}

	now := s.now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lessons(id, slug, title, interaction_type, builtin, config_json, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug=excluded.slug,
			title=excluded.title,
			interaction_type=excluded.interaction_type,
			builtin=excluded.builtin,
			config_json=excluded.config_json,
			updated_at=excluded.updated_at`,
		l.ID, l.Slug, l.Title, string(l.Type), l.Builtin, string(b), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return errors.Wrapf(ErrDuplicateSlug, "slug %q", l.Slug)
		}
		return errors.Wrap(err, "save lesson")
	}
	l.Config = cfg
	return nil
}

const lessonColumns = `id, slug, title, interaction_type, builtin, config_json, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLesson(row scanner) (*Lesson, error) {
	var (
		l   Lesson
		typ string
		raw string
	)
	if err := row.Scan(&l.ID, &l.Slug, &l.Title, &typ, &l.Builtin, &raw, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Type = lesson.Type(typ)
	cfg, err := lesson.DecodeBytes([]byte(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "decode config of lesson %s", l.ID)
	}
	l.Config = cfg
	return &l, nil
}

func (s *SQLiteDB) getLesson(ctx context.Context, where string, arg any) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE `+where, arg)
	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get lesson")
	}
	return l, nil
}

func (s *SQLiteDB) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	return s.getLesson(ctx, "id=?", id)
}

func (s *SQLiteDB) GetLessonBySlug(ctx context.Context, slug string) (*Lesson, error) {
	return s.getLesson(ctx, "slug=?", slug)
}

// ListLessons returns lessons ordered by type then slug.
func (s *SQLiteDB) ListLessons(ctx context.Context, q LessonsQuery) ([]Lesson, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	where := "1=1"
	var args []any
	if q.Type != "" {
		where = "interaction_type=?"
		args = append(args, string(q.Type))
	}
	args = append(args, q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE `+where+`
		ORDER BY interaction_type ASC, slug ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list lessons")
	}
	defer rows.Close()

	out := []Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan lesson")
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// DeleteLesson removes a lesson and its sweep reports.
func (s *SQLiteDB) DeleteLesson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id=?`, id)
	if err != nil {
		return errors.Wrap(err, "delete lesson")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSweepReport stores a sweep run for a lesson.
func (s *SQLiteDB) SaveSweepReport(ctx context.Context, r *SweepReport) error {
	if r.Report == nil {
		return errors.New("sweep report is empty")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Metric == "" {
		r.Metric = r.Report.Metric
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	b, err := json.Marshal(r.Report)
	if err != nil {
		return errors.Wrap(err, "encode sweep report")
	}
	sum := r.Report.Summary
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sweep_reports(id, lesson_id, metric, points, failures, min_metric, max_metric, mean_metric, report_json, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.LessonID, r.Metric, len(r.Report.Points), sum.Failures,
		sum.MinMetric, sum.MaxMetric, sum.MeanMetric, string(b), r.CreatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return errors.Wrapf(ErrNotFound, "lesson %s", r.LessonID)
		}
		return errors.Wrap(err, "save sweep report")
	}
	return nil
}

// ListSweepReports returns a lesson's reports, newest first.
func (s *SQLiteDB) ListSweepReports(ctx context.Context, lessonID string, limit int) ([]SweepReport, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lesson_id, metric, report_json, created_at
		FROM sweep_reports
		WHERE lesson_id=?
		ORDER BY created_at DESC, id ASC
		LIMIT ?`, lessonID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list sweep reports")
	}
	defer rows.Close()

	out := []SweepReport{}
	for rows.Next() {
		var (
			r   SweepReport
			raw string
		)
		if err := rows.Scan(&r.ID, &r.LessonID, &r.Metric, &raw, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan sweep report")
		}
		if err := json.Unmarshal([]byte(raw), &r.Report); err != nil {
			return nil, errors.Wrapf(err, "decode sweep report %s", r.ID)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// isConstraintErr matches modernc's "constraint failed" messages.
func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint")
}
