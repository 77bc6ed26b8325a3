// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidTaskStatus is returned when a task status is not one of
	// pending, in_progress or completed.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTaskPriority is returned when a task priority is not one of
	// low, medium or high.
	ErrInvalidTaskPriority = errors.New("invalid task priority")

	// ErrInvalidReportType is returned when a report type is not csv or pdf.
	ErrInvalidReportType = errors.New("invalid report type")

	// ErrInvalidReportStatus is returned when a report status is not valid.
	ErrInvalidReportStatus = errors.New("invalid report status")

	// ErrUnauthorized is returned when an operation is not permitted for
	// the acting user.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError wraps a domain sentinel with the field that failed,
// so handlers can return field-level messages without string matching.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Unwrap returns the wrapped sentinel to support errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}
