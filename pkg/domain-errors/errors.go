// Package derrors defines the coded error type shared by all services.
//
// Services wrap infrastructure sentinels (pkg/platform/sentinel) into coded
// errors; the HTTP layer translates codes into statuses. Codes, not types,
// are the contract: callers test with HasCode, never with type assertions.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for propagation and HTTP translation.
type Code string

const (
	// CodeLocked marks a mutating operation attempted on a locked form.
	CodeLocked Code = "form_locked"
	// CodeValidation marks rejected input or an unmet submit precondition.
	// Errors with this code may carry the offending items (see Items).
	CodeValidation Code = "validation_failed"
	// CodeConflict marks duplicate unique keys and check-then-commit races.
	CodeConflict Code = "conflict"
	// CodeNotFound marks a missing record, document or application.
	CodeNotFound Code = "not_found"
	// CodeUnavailable marks a transient infrastructure failure with no
	// definite outcome; callers may retry or re-fetch.
	CodeUnavailable Code = "unavailable"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
)

// Error is a coded domain error. Message is safe to show to the user.
type Error struct {
	Code    Code
	Message string
	// Items lists the offending fields or missing prerequisites for
	// validation failures, in a human-readable form.
	Items []string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidation creates a validation error naming the offending items.
func NewValidation(message string, items ...string) *Error {
	return &Error{Code: CodeValidation, Message: message, Items: items}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// Is is a readability alias for HasCode, matching call sites like
// derrors.Is(err, derrors.CodeConflict).
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ItemsOf returns the offending items of the outermost coded error, if any.
func ItemsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Items
	}
	return nil
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer writes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeLocked, CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
