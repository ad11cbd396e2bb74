package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is the normalized failure representation returned to callers.
// Detail is either a string or a structured object (e.g. the upstream's
// parsed error body).
type Error struct {
	Status int
	Detail interface{}
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %d: %v", e.Status, e.Detail)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Status == 0 || other.Status == e.Status
	}
	return false
}

// New creates a new Error with the given status and detail.
func New(status int, detail interface{}) *Error {
	return &Error{Status: status, Detail: detail}
}

// Unauthorized creates a 401 error.
func Unauthorized(detail interface{}) *Error {
	return New(http.StatusUnauthorized, detail)
}

// Forbidden creates a 403 error.
func Forbidden(detail interface{}) *Error {
	return New(http.StatusForbidden, detail)
}

// NotFound creates a 404 error.
func NotFound(detail interface{}) *Error {
	return New(http.StatusNotFound, detail)
}

// Conflict creates a 409 error.
func Conflict(detail interface{}) *Error {
	return New(http.StatusConflict, detail)
}

// BadRequest creates a 400 error.
func BadRequest(detail interface{}) *Error {
	return New(http.StatusBadRequest, detail)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(detail interface{}) *Error {
	return New(http.StatusServiceUnavailable, detail)
}

// Internal creates a 500 error.
func Internal(detail interface{}) *Error {
	return New(http.StatusInternalServerError, detail)
}

// FromUpstream creates an Error carrying the upstream's exact status code.
// The detail is the upstream's parsed error body when it is valid JSON,
// falling back to the raw response text.
func FromUpstream(status int, body []byte) *Error {
	if len(body) > 0 {
		var detail interface{}
		if err := json.Unmarshal(body, &detail); err == nil {
			return New(status, detail)
		}
	}
	return New(status, string(body))
}

// ValidationError represents an expected client mistake or business
// rejection. It maps to 400 and is never audited.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
