// Package apperror defines the domain error kinds shared by the service,
// repository and handler layers.
//
// Every failure a comment operation can report is an *AppError wrapping one
// of the sentinels below. Callers branch with errors.Is; the HTTP layer maps
// each sentinel to exactly one status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Detail  string // Optional: underlying cause, surfaced on internal errors
	cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel kind and, for internal errors, the
// original store error, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized reports a missing or unverifiable credential.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Internal wraps a persistence or other unexpected failure. The cause's text
// is kept in Detail so the response can carry it.
func Internal(message string, cause error) *AppError {
	e := &AppError{
		Err:     ErrInternal,
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}
