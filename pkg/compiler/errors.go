package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateDefinition = errors.New("duplicate definition")
	ErrDuplicateScope      = errors.New("duplicate scope")
	ErrDuplicateSymbol     = errors.New("duplicate symbol")
	ErrUnresolvedSymbol    = errors.New("unresolved symbol")
	ErrMalformedLiteral    = errors.New("malformed literal")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrInvalidDestination  = errors.New("invalid destination")
	ErrNotInDefinition     = errors.New("not in definition")
	ErrNotInCondition      = errors.New("not in condition")
	ErrInvalidContext      = errors.New("invalid context")
	ErrMissingOperand      = errors.New("missing operand")
	ErrUnterminatedBlock   = errors.New("unterminated block")
	ErrInvalidName         = errors.New("invalid name")
)

// Error is a translation failure tied to a source position. Kind is one of
// the sentinel errors above, so callers can match with errors.Is.
type Error struct {
	Kind   error
	Line   int
	Column int
	Token  string
	Msg    string
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	} else {
		msg = msg + ": " + e.Kind.Error()
	}
	if e.Token != "" {
		msg = fmt.Sprintf("%s (%q)", msg, e.Token)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

// failf builds an Error without position; the emitter fills in the line
// once the error reaches the dispatch loop.
func failf(kind error, token string, format string, args ...any) *Error {
	return &Error{Kind: kind, Token: token, Msg: fmt.Sprintf(format, args...)}
}

// atLine attaches a source position to err unless it already carries one.
func atLine(err error, line, column int) error {
	var e *Error
	if errors.As(err, &e) {
		if e.Line == 0 {
			e.Line = line
			e.Column = column
		}
		return e
	}
	return &Error{Kind: err, Line: line, Column: column}
}
