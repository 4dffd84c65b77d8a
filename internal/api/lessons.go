package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/store"
	"github.com/MJE43/lessonviz/internal/sweep"
)

// writeLessonError maps lesson and store errors to responses.
func (s *Server) writeLessonError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *lesson.ConfigError
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.fail(w, r, http.StatusNotFound, ErrTypeLessonNotFound, "Lesson not found", nil)
	case errors.Is(err, store.ErrDuplicateSlug):
		s.fail(w, r, http.StatusConflict, ErrTypeConflict, err.Error(), nil)
	case errors.Is(err, lesson.ErrUnknownType):
		s.fail(w, r, http.StatusBadRequest, ErrTypeUnknownType, err.Error(), nil)
	case errors.As(err, &ce):
		e := NewError(ErrTypeInvalidLesson, ce.Error()).
			WithContext("field", ce.Field).
			WithContext("interactionType", string(ce.Type)).
			Build()
		s.writeError(w, r, http.StatusBadRequest, &e)
	default:
		s.fail(w, r, http.StatusInternalServerError, ErrTypeInternal, "Lesson store failure", err)
	}
}

// checkLesson validates cfg and compiles it by mounting a throwaway engine.
func (s *Server) checkLesson(cfg *lesson.Config) error {
	if err := lesson.Validate(cfg); err != nil {
		return err
	}
	_, err := interactions.Mount(cfg.InteractionType, cfg, interactions.Deps{Logger: s.log})
	return err
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	q := store.LessonsQuery{
		Type:   lesson.Type(r.URL.Query().Get("type")),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	lessons, err := s.db.ListLessons(r.Context(), q)
	if err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"lessons": lessons, "limit": q.Limit, "offset": q.Offset})
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	cfg, err := lesson.Decode(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var ce *lesson.ConfigError
		if errors.As(err, &ce) {
			s.writeLessonError(w, r, err)
			return
		}
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid JSON format", err)
		return
	}
	if err := s.checkLesson(cfg); err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	l := &store.Lesson{Config: cfg}
	if err := s.db.SaveLesson(r.Context(), l); err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	s.log.Info("lesson saved", zap.String("id", l.ID), zap.String("slug", l.Slug), zap.String("type", string(l.Type)))
	s.writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	l, err := s.db.GetLesson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteLesson(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SweepRequest is the body of POST /lessons/{id}/sweep. Values default to
// sweep.DefaultValues; Min/Max/Points build an even grid instead.
type SweepRequest struct {
	Values    []float64               `json:"values,omitempty"`
	Min       *float64                `json:"min,omitempty"`
	Max       *float64                `json:"max,omitempty"`
	Points    int                     `json:"points,omitempty"`
	Metric    string                  `json:"metric,omitempty"`
	Target    *interactions.Predicate `json:"target,omitempty"`
	TimeoutMs int                     `json:"timeout_ms,omitempty"`
}

func (s *Server) handleSweepLesson(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid JSON format", err)
		return
	}
	if req.Target != nil {
		op, ok := lesson.NormalizeOp(req.Target.Op)
		if !ok {
			s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Validation failed: unsupported target op "+req.Target.Op, nil)
			return
		}
		req.Target.Op = op
	}
	l, err := s.db.GetLesson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLessonError(w, r, err)
		return
	}

	values := req.Values
	switch {
	case len(values) > 0:
	case req.Min != nil && req.Max != nil:
		n := req.Points
		if n <= 0 {
			n = sweep.DefaultPoints
		}
		values = sweep.Grid(*req.Min, *req.Max, n)
	default:
		if values, err = sweep.DefaultValues(l.Type, l.Config); err != nil {
			s.writeLessonError(w, r, err)
			return
		}
	}
	if len(values) > 10_000 {
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Validation failed: at most 10000 values", nil)
		return
	}

	rep, err := sweep.Run(r.Context(), l.Type, l.Config, sweep.Request{
		Values:  values,
		Metric:  req.Metric,
		Target:  req.Target,
		Workers: s.sweepWorkers,
		Timeout: time.Duration(req.TimeoutMs) * time.Millisecond,
	}, sweep.Options{Logger: s.log})
	switch {
	case errors.Is(err, sweep.ErrTimeout):
		// partial reports are kept
	case errors.Is(err, sweep.ErrUnknownMetric):
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, err.Error(), nil)
		return
	case err != nil:
		s.writeLessonError(w, r, err)
		return
	}

	stored := &store.SweepReport{LessonID: l.ID, Report: rep}
	if err := s.db.SaveSweepReport(r.Context(), stored); err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetLesson(r.Context(), id); err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	reports, err := s.db.ListSweepReports(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		s.writeLessonError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
