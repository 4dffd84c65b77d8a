package lesson

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType      = errors.New("unknown interaction type")
	ErrInvalid          = errors.New("invalid value")
	ErrMissing          = errors.New("missing required field")
	ErrUnsupported      = errors.New("unsupported kind")
	ErrBadCondition     = errors.New("unsupported trigger condition")
	ErrInvalidTimeRange = errors.New("time domain requires start < end and step > 0")
)

// ConfigError is fatal to the engine instance built from the lesson.
type ConfigError struct {
	Type  Type
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if errors.Is(e.Err, ErrUnknownType) {
		return fmt.Sprintf("Unknown interaction type: %s", e.Type)
	}
	if e.Field == "" {
		return fmt.Sprintf("lesson %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("lesson %s: %s: %v", e.Type, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Errorf builds a ConfigError wrapping sentinel with extra detail.
func Errorf(t Type, field string, sentinel error, format string, args ...any) *ConfigError {
	return &ConfigError{Type: t, Field: field, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}

// Wrap attaches a field path to err.
func Wrap(t Type, field string, err error) *ConfigError {
	return &ConfigError{Type: t, Field: field, Err: err}
}
