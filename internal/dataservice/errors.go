package dataservice

import (
	"errors"
	"fmt"
)

// ErrorKind classifies data service failures.
type ErrorKind string

// Common data service error kinds
const (
	KindConnection ErrorKind = "connection"
	KindNotFound   ErrorKind = "not_found"
	KindConstraint ErrorKind = "constraint"
	KindTimeout    ErrorKind = "timeout"
	KindPermission ErrorKind = "permission"
	KindInvalid    ErrorKind = "invalid"
)

// Error is a classified data service failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConstraint = &Error{Kind: KindConstraint}
	ErrInvalid    = &Error{Kind: KindInvalid}
)

// Wrap builds a classified error.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }
