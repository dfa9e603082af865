package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures at the service boundary.
type Kind string

const (
	KindAuthentication    Kind = "AUTHENTICATION"
	KindAuthorization     Kind = "AUTHORIZATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindValidation        Kind = "VALIDATION"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindPersistence       Kind = "PERSISTENCE"
	KindRateLimited       Kind = "RATE_LIMITED"
)

// Error carries a client-safe message and the underlying cause.
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

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string, err error) *Error {
	return New(KindAuthentication, message, err)
}

func Forbidden(message string, err error) *Error {
	return New(KindAuthorization, message, err)
}

func NotFound(resource string, err error) *Error {
	return New(KindNotFound, resource+" not found", err)
}

func Validation(message string, err error) *Error {
	return New(KindValidation, message, err)
}

func InvalidTransition(message string, err error) *Error {
	return New(KindInvalidTransition, message, err)
}

func Persistence(message string, err error) *Error {
	return New(KindPersistence, message, err)
}

func RateLimited(message string) *Error {
	return New(KindRateLimited, message, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the client-safe message. Unclassified errors are masked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidTransition:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
