// Package apperr defines the error kinds that cross package boundaries.
// Lower layers construct an *Error once; callers wrap it with %w and the
// HTTP handler is the only place that turns a Kind into a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindValidation
	KindUnknownTool
	KindBackend
	KindModel
	KindMaxTurns
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindUnknownTool:
		return "unknown_tool"
	case KindBackend:
		return "backend"
	case KindModel:
		return "model"
	case KindMaxTurns:
		return "max_turns"
	default:
		return "unknown"
	}
}

// Error is the single error shape used across the orchestrator.
type Error struct {
	Kind   Kind
	Op     string // e.g. tool name or "llm generate"
	Field  string // offending argument, for KindValidation
	Status int    // HTTP status from the backend, 0 on transport failure
	Body   string // backend response body
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func Unauthenticated(op, msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Op: op, Err: errors.New(msg)}
}

func Validation(op, field string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: err}
}

func UnknownTool(name string) *Error {
	return &Error{Kind: KindUnknownTool, Op: name, Err: fmt.Errorf("tool %q is not registered", name)}
}

func Backend(op string, status int, body string, err error) *Error {
	return &Error{Kind: KindBackend, Op: op, Status: status, Body: body, Err: err}
}

func Model(op string, err error) *Error {
	return &Error{Kind: KindModel, Op: op, Err: err}
}

func MaxTurns(limit int) *Error {
	return &Error{Kind: KindMaxTurns, Err: fmt.Errorf("no final answer after %d model turns", limit)}
}
