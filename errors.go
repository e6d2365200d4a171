package larkauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an auth error so callers can map it onto their own
// protocol (HTTP status, gRPC code, etc).
type Kind int

const (
	// KindInternal is anything unexpected or unclassified.
	KindInternal Kind = iota

	// KindInvalidInput means a caller-supplied field was missing or malformed.
	KindInvalidInput

	// KindUnauthorized means the provider rejected credentials, an auth
	// code, or a token.
	KindUnauthorized

	// KindUnavailable means we could not talk to the provider at all
	// (timeouts, connection errors, non-2xx without a structured body).
	KindUnavailable

	// KindNotFound means a local lookup missed.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the typed error returned by LarkClient, UserStore and LarkAuth.
// The pipeline never swallows or retries these - they are classified once
// and forwarded by return value.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error with no underlying cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a typed error wrapping an underlying cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err carries no kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error onto the HTTP status a collaborator should
// render: 400 invalid input, 401 unauthorized, 404 not found, 503
// unavailable, 500 everything else.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
