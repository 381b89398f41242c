package loader

import (
	"errors"
	"fmt"

	"github.com/sarchlab/cyclesim/insts"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports malformed source at a location.
type SyntaxError struct {
	Loc insts.SourceLocation
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at %s", e.Msg, e.Loc)
}

// Unwrap returns ErrSyntax.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func syntaxErrorf(loc insts.SourceLocation, format string, args ...any) error {
	return &SyntaxError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}
