// Package fault carries the error taxonomy shared by every layer: callers
// branch on the kind with errors.Is and never on message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller should react to it.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindTransient         Kind = "transient"
)

var (
	ErrValidation        = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Msg: "invalid transition"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrTransient         = &Error{Kind: KindTransient, Msg: "transient failure"}
)

// Error is a classified failure. Two errors match under errors.Is when they
// share a kind and the target carries no more specific message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New builds a sentinel of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Transient wraps a storage or network failure observed during op.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: KindTransient, Msg: op, Err: err}
}

// Wrap attaches kind to err, keeping err reachable through errors.Unwrap.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the bare kind sentinels (ErrValidation, ...) or
// against the exact same sentinel value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	if t.Kind != e.Kind {
		return false
	}
	return isKindSentinel(t)
}

// KindOf returns the kind of err, or "" when err is unclassified.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

func isKindSentinel(e *Error) bool {
	switch e {
	case ErrValidation, ErrConflict, ErrInvalidTransition, ErrNotFound, ErrForbidden, ErrTransient:
		return true
	}
	return false
}
