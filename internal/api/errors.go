package api

import (
	"errors"
	"net/http"

	"github.com/cfab/hwagent/internal/apperr"
	"github.com/cfab/hwagent/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error details to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, task.ErrQueueFull), errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable
	}

	switch apperr.CodeOf(err) {
	case apperr.CodeValidation, apperr.CodeTranslation:
		return http.StatusBadRequest
	case apperr.CodeHardware:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, task.ErrQueueFull):
		return "Task queue is full, try again later"
	case errors.Is(err, task.ErrQueueClosed):
		return "Agent is shutting down"
	}

	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return "Invalid request"
	case apperr.CodeTranslation:
		return "Unknown language"
	case apperr.CodeHardware:
		return "Hardware probe failed"
	default:
		return "An unexpected error occurred"
	}
}
