package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an application error
type Kind int

const (
	KindFailure Kind = iota + 1
	KindValidation
	KindNotFound
	KindConflict
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindFailure:
		return "failure"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternalService:
		return "external_service"
	default:
		return "unknown"
	}
}

// Error is the typed error returned across component boundaries.
// Service and StatusCode are only set for KindExternalService.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Service    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Failure creates a generic internal error
func Failure(code, message string, err error) *Error {
	return &Error{Kind: KindFailure, Code: code, Message: message, Err: err}
}

// Validation creates an input validation error
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NotFound creates a not-found error
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict creates a conflict error
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// ExternalService creates an error for a failing upstream dependency.
// statusCode is 0 when no HTTP response was received.
func ExternalService(service, code, message string, statusCode int, err error) *Error {
	return &Error{
		Kind:       KindExternalService,
		Code:       code,
		Message:    message,
		Service:    service,
		StatusCode: statusCode,
		Err:        err,
	}
}

// KindOf returns the Kind of err, or KindFailure for untyped errors
// and 0 for nil.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindFailure
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
