package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/session"
	"github.com/MJE43/lessonviz/internal/store"
)

// CreateSessionRequest picks the lesson to mount: a stored lesson by id or
// slug, an inline config, or the built-in lesson of a bare type.
type CreateSessionRequest struct {
	LessonID string          `json:"lessonId,omitempty"`
	Slug     string          `json:"slug,omitempty"`
	Type     lesson.Type     `json:"type,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
	Width    float64         `json:"width,omitempty"`
	Height   float64         `json:"height,omitempty"`
	DPR      float64         `json:"dpr,omitempty"`
}

// InputRequest is one host event for a session.
type InputRequest struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value,omitempty"`
	Ratio  *float64 `json:"ratio,omitempty"`
	Width  float64  `json:"width,omitempty"`
	Height float64  `json:"height,omitempty"`
	DPR    float64  `json:"dpr,omitempty"`
}

// Input actions.
const (
	ActionSet         = "set"
	ActionPointerDown = "pointerdown"
	ActionPointerMove = "pointermove"
	ActionPointerUp   = "pointerup"
	ActionPlay        = "play"
	ActionPause       = "pause"
	ActionToggle      = "toggle"
	ActionSeek        = "seek"
	ActionResize      = "resize"
)

func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.fail(w, r, http.StatusNotFound, ErrTypeSessionNotFound, "Session not found", nil)
	case errors.Is(err, session.ErrDisposed):
		s.fail(w, r, http.StatusGone, ErrTypeSessionGone, err.Error(), nil)
	case errors.Is(err, session.ErrFailed):
		s.fail(w, r, http.StatusConflict, ErrTypeSessionFailed, err.Error(), nil)
	case errors.Is(err, session.ErrNotPlayable):
		s.fail(w, r, http.StatusConflict, ErrTypeNotPlayable, err.Error(), nil)
	case errors.Is(err, session.ErrLimit):
		s.fail(w, r, http.StatusTooManyRequests, ErrTypeSessionLimit, err.Error(), nil)
	default:
		s.fail(w, r, http.StatusInternalServerError, ErrTypeInternal, "Session failure", err)
	}
}

// resolveLesson turns a create request into the tag and config to mount.
func (s *Server) resolveLesson(r *http.Request, req CreateSessionRequest) (lesson.Type, *lesson.Config, error) {
	switch {
	case req.LessonID != "":
		l, err := s.db.GetLesson(r.Context(), req.LessonID)
		if err != nil {
			return "", nil, err
		}
		return l.Type, l.Config, nil
	case req.Slug != "":
		l, err := s.db.GetLessonBySlug(r.Context(), req.Slug)
		if err != nil {
			return "", nil, err
		}
		return l.Type, l.Config, nil
	case len(req.Config) > 0:
		cfg, err := lesson.DecodeBytes(req.Config)
		if err != nil {
			return "", nil, err
		}
		tag := cfg.InteractionType
		if tag == "" {
			tag = req.Type
		}
		return tag, cfg, nil
	case req.Type != "":
		return req.Type, nil, nil
	}
	return "", nil, errMissingLesson
}

var errMissingLesson = errors.New("one of lessonId, slug, config or type is required")

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid JSON format", err)
		return
	}
	if req.Width < 0 || req.Height < 0 || req.DPR < 0 {
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Validation failed: size must not be negative", nil)
		return
	}
	tag, cfg, err := s.resolveLesson(r, req)
	if err != nil {
		if errors.Is(err, errMissingLesson) {
			s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Validation failed: "+err.Error(), nil)
			return
		}
		var ce *lesson.ConfigError
		if errors.As(err, &ce) || errors.Is(err, store.ErrNotFound) {
			s.writeLessonError(w, r, err)
			return
		}
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid lesson config", err)
		return
	}

	// A lesson that fails to mount still yields a session showing the
	// error frame.
	sess, err := s.sessions.Create(tag, cfg, req.Width, req.Height, req.DPR)
	if errors.Is(err, session.ErrLimit) {
		s.writeSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionInput(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	var in InputRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid JSON format", err)
		return
	}
	if msg := validateInput(in); msg != "" {
		e := NewError(ErrTypeValidation, "Validation failed: "+msg).WithContext("action", in.Action).Build()
		s.writeError(w, r, http.StatusBadRequest, &e)
		return
	}
	if err := applyInput(sess, in); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func validateInput(in InputRequest) string {
	switch in.Action {
	case ActionSet, ActionSeek:
		if in.Value == nil {
			return "value is required for " + in.Action
		}
	case ActionPointerDown, ActionPointerMove:
		if in.Ratio == nil {
			return "ratio is required for " + in.Action
		}
	case ActionResize:
		if in.Width <= 0 || in.Height <= 0 {
			return "width and height must be positive"
		}
	case ActionPointerUp, ActionPlay, ActionPause, ActionToggle:
	default:
		return "unknown action " + in.Action
	}
	return ""
}

func applyInput(sess *session.Session, in InputRequest) error {
	switch in.Action {
	case ActionSet:
		return sess.SetValue(*in.Value)
	case ActionSeek:
		return sess.Seek(*in.Value)
	case ActionPointerDown:
		return sess.PointerDown(*in.Ratio)
	case ActionPointerMove:
		return sess.PointerMove(*in.Ratio)
	case ActionPointerUp:
		return sess.PointerUp()
	case ActionPlay:
		return sess.Play()
	case ActionPause:
		return sess.Pause()
	case ActionToggle:
		return sess.Toggle()
	case ActionResize:
		return sess.Resize(in.Width, in.Height, in.DPR)
	}
	return nil
}

func (s *Server) handleSessionFrame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	png, err := sess.PNG()
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		s.log.Debug("write frame", zap.String("session", sess.ID()), zap.Error(err))
	}
}
