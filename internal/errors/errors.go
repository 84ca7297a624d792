// Package errors maps the domain error taxonomy onto structured HTTP
// responses with status codes and response bodies.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

// ErrorType categorizes an error for metrics and response formatting.
type ErrorType string

const (
	// TypeValidation indicates a malformed request (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates no data for the key or window (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeConflict indicates a concurrent migration (HTTP 409)
	TypeConflict ErrorType = "conflict"
	// TypeUnavailable indicates every answerable tier is down (HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
	// TypeInternal indicates a server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error is a structured error with type, message, and context fields.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError creates a new validation error (HTTP 400).
func ValidationError(message string) *Error {
	return &Error{Type: TypeValidation, Message: message, Context: make(map[string]any)}
}

// NotFoundError creates a new not-found error (HTTP 404).
func NotFoundError(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message, Context: make(map[string]any)}
}

// InternalError creates a new internal error (HTTP 500).
func InternalError(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause, Context: make(map[string]any)}
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON structure sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error for JSON serialization.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// FromDomain converts any error into a structured Error by walking the
// domain taxonomy. Already-structured errors pass through unchanged.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return ValidationError(validation.Reason).WithField("field", validation.Field)
	case errors.Is(err, domain.ErrNotFound):
		return NotFoundError("no data for the requested key or window")
	case errors.Is(err, domain.ErrMigrationConflict):
		return &Error{Type: TypeConflict, Message: "a lifecycle migration is already in flight", Cause: err, Context: make(map[string]any)}
	case errors.Is(err, domain.ErrBackendUnavailable):
		return &Error{Type: TypeUnavailable, Message: "storage backend unavailable", Cause: err, Context: make(map[string]any)}
	}

	return InternalError("internal server error", err)
}
