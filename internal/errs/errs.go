// Package errs defines the failure kinds shared by the domain and the API.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	InvalidInput Kind = "invalid_input"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Forbidden    Kind = "forbidden"
	Internal     Kind = "internal"
)

// Error is a classified failure. Message is safe to show to callers, except
// for Internal errors whose Message is replaced at the API boundary.
type Error struct {
	Kind    Kind
	Message string

	// Available is set on stock conflicts.
	Available *int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the kind maps to.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Internal error carrying err.
func Wrap(err error, message string) *Error {
	return &Error{Kind: Internal, Message: message, Err: err}
}

// InsufficientStock reports a stock conflict with the quantity still available.
func InsufficientStock(available int) *Error {
	return &Error{
		Kind:      Conflict,
		Message:   "insufficient stock",
		Available: &available,
	}
}

// NotAvailable reports a unique item that is currently on loan.
func NotAvailable() *Error {
	zero := 0
	return &Error{
		Kind:      Conflict,
		Message:   "item is not available",
		Available: &zero,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf classifies err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}
