package expr

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownFunction = errors.New("function not allowed")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrArity           = errors.New("wrong number of arguments")
	ErrArgCount        = errors.New("argument count does not match variables")
	ErrNotFinite       = errors.New("expression result is not finite")
	ErrShape           = errors.New("expression has the wrong shape")
)

// SyntaxError reports a compile failure at a byte offset of the source.
type SyntaxError struct {
	Src string
	Pos int
	Msg string
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr %q: %s at offset %d", e.Src, e.Msg, e.Pos)
}

func (e *SyntaxError) Unwrap() error { return e.Err }
