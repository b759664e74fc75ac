// Package apperr defines the service-level error taxonomy.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for the caller. Codes are stable API surface:
// clients decide retry behavior from them, so collaborator-specific detail
// never leaks into a code.
type Code string

const (
	// CodeInvalidArgument marks malformed or missing request fields. Not retryable.
	CodeInvalidArgument Code = "invalid_argument"

	// CodeUnauthenticated marks requests without a verified caller identity. Not retryable.
	CodeUnauthenticated Code = "unauthenticated"

	// CodeNotFound marks requests for records that do not exist.
	CodeNotFound Code = "not_found"

	// CodeInternal marks collaborator failures (model, store, translation).
	// Safe to retry: any placeholder turn has already been resolved before
	// the error surfaces.
	CodeInternal Code = "internal"
)

// Error carries a code and a sanitized, caller-visible message.
type Error struct {
	Code    Code
	Message string

	// cause is kept for logs only; it is never serialized to the caller.
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with a code and caller-visible message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted caller-visible message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a collaborator error as CodeInternal with a sanitized message.
// The cause stays attached for logging but is not shown to callers.
func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: cause}
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-visible message from err. Unclassified errors
// collapse to a generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a code to its HTTP response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
