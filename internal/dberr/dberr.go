// Package dberr defines the typed errors returned by the database manager.
// Every failure surfaces as an *Error carrying a Kind, the operation that
// failed and, where applicable, the underlying driver error as its cause.
package dberr

import (
	"errors"
	"fmt"
)

// Kind classifies a database manager failure.
type Kind int

const (
	// Unknown means the error could not be classified.
	Unknown Kind = iota

	// Connection covers malformed database URLs and unreachable databases.
	Connection

	// Schema covers malformed table or column definitions and conflicting
	// schema state (missing tables, invalid identifiers).
	Schema

	// Data covers malformed records, constraint violations and empty
	// filters on operations that require one.
	Data

	// Authorization is returned when the deletion password does not match.
	Authorization

	// Usage is returned when an operation is invoked outside the Connected
	// state of the manager lifecycle.
	Usage

	// Internal covers unexpected failures in the manager itself.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case Schema:
		return "schema"
	case Data:
		return "data"
	case Authorization:
		return "authorization"
	case Usage:
		return "usage"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by the database manager.
type Error struct {
	// Kind is the classification of the error.
	Kind Kind
	// Op is the operation that generated the error, e.g. "dbmanager.Select".
	Op string
	// Msg describes what went wrong.
	Msg string
	// Wrapped is the underlying cause, if any.
	Wrapped error
}

// New creates a new Error with no underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error with err retained as the cause. A nil err is
// allowed and behaves like New.
func Wrap(err error, kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Wrapped: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Wrapped != nil {
		msg = msg + ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the underlying cause so that errors.Is and errors.As can
// reach driver errors through the wrapper.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// KindOf returns the Kind of err, or Unknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
