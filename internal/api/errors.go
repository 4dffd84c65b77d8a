package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// EngineError is the JSON body of every error response.
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e EngineError) Error() string { return e.Message }

const (
	ErrTypeValidation    = "validation_error"
	ErrTypeInvalidLesson = "invalid_lesson"
	ErrTypeUnknownType   = "unknown_interaction_type"

	ErrTypeLessonNotFound  = "lesson_not_found"
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeSessionGone     = "session_disposed"
	ErrTypeSessionFailed   = "session_failed"
	ErrTypeNotPlayable     = "not_playable"
	ErrTypeConflict        = "conflict"

	ErrTypeTimeout      = "timeout"
	ErrTypeSessionLimit = "session_limit"
	ErrTypeInternal     = "internal_error"
)

// ErrorCategory groups error types for logging.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryLesson     ErrorCategory = "lesson"
	CategorySession    ErrorCategory = "session"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidLesson, ErrTypeUnknownType:
		return CategoryValidation
	case ErrTypeLessonNotFound, ErrTypeConflict:
		return CategoryLesson
	case ErrTypeSessionNotFound, ErrTypeSessionGone, ErrTypeSessionFailed, ErrTypeNotPlayable, ErrTypeSessionLimit:
		return CategorySession
	default:
		return CategorySystem
	}
}

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{errType: errType, message: message, context: make(map[string]any)}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// writeError logs and writes an error built by eb.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, eb *EngineError) {
	if eb.RequestID == "" {
		eb.RequestID = middleware.GetReqID(r.Context())
	}
	category := GetErrorCategory(eb.Type)
	fields := []zap.Field{
		zap.String("type", eb.Type),
		zap.String("category", string(category)),
		zap.Int("status", status),
		zap.String("request_id", eb.RequestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Any("context", eb.Context),
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(eb.Message, fields...)
	} else {
		s.log.Warn(eb.Message, fields...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", Version)
	w.Header().Set("X-Error-Type", eb.Type)
	w.Header().Set("X-Error-Category", string(category))
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(eb); err != nil {
		s.log.Error("encode error response", zap.Error(err))
	}
}

// fail is writeError for the common builder chain.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, errType, message string, cause error) {
	e := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithCause(cause).
		Build()
	s.writeError(w, r, status, &e)
}
