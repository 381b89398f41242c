package insts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOperandCount is returned when an instruction gets the wrong number
	// of operands for its opcode.
	ErrOperandCount = errors.New("operand count mismatch")

	// ErrOperandKind is returned when an operand is not of an accepted kind.
	ErrOperandKind = errors.New("operand type mismatch")

	// ErrInvalidProgram is returned when a program violates the loader
	// contract.
	ErrInvalidProgram = errors.New("invalid program")
)

// OperandError describes a rejected Create call.
type OperandError struct {
	Opcode Opcode
	Loc    SourceLocation

	// Set for count mismatches.
	Expected int
	Actual   int

	// Set for kind mismatches. Index is 1-based.
	Index      int
	Accepted   []OperandKind
	ActualKind OperandKind
}

// Error implements error.
func (e *OperandError) Error() string {
	if e.Accepted == nil {
		return fmt.Sprintf("%s. %s expects %d arguments, but %d are provided at %s",
			capitalize(ErrOperandCount.Error()), e.Opcode, e.Expected, e.Actual, e.Loc)
	}

	names := make([]string, len(e.Accepted))
	for i, k := range e.Accepted {
		names[i] = k.String()
	}

	return fmt.Sprintf("%s. %s expects %s as argument nr %d, but %s was provided at %s",
		capitalize(ErrOperandKind.Error()), e.Opcode, strings.Join(names, ", "),
		e.Index, e.ActualKind, e.Loc)
}

// Unwrap returns ErrOperandCount or ErrOperandKind.
func (e *OperandError) Unwrap() error {
	if e.Accepted == nil {
		return ErrOperandCount
	}
	return ErrOperandKind
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
