// Package apperr defines the application's error model: a small set of
// machine-readable error codes plus a details map carried alongside the
// human-readable message. Errors wrap their cause so errors.Is/As keep
// working across package boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies the error category in a machine-readable form.
type Code string

// Error categories used across the application.
const (
	CodeUnknown     Code = "HWAGENT_UNKNOWN"
	CodeConfig      Code = "HWAGENT_CONFIG"
	CodeValidation  Code = "HWAGENT_VALIDATION"
	CodeHardware    Code = "HWAGENT_HARDWARE"
	CodeTask        Code = "HWAGENT_TASK"
	CodeFile        Code = "HWAGENT_FILE"
	CodeTranslation Code = "HWAGENT_TRANSLATION"
	CodeCache       Code = "HWAGENT_CACHE"
	CodeUnexpected  Code = "HWAGENT_UNEXPECTED"
)

// Error is the application error type. Details carries structured context
// for logging; it is never shown to end users directly.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// With attaches a detail key/value pair and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code. This lets
// callers match categories with errors.Is using sentinel errors like
// apperr.New(apperr.CodeConfig, "").
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the error code from err, walking the wrap chain.
// Returns CodeUnknown when no *Error is found.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// LogFields returns the error's structured context as alternating key/value
// pairs suitable for slog.
func (e *Error) LogFields() []any {
	fields := []any{"error_code", string(e.Code)}
	for k, v := range e.Details {
		fields = append(fields, k, v)
	}
	return fields
}
