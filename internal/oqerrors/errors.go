// Package oqerrors provides sentinel and custom error types for the application.
package oqerrors

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrUnavailable is the sentinel for capabilities that are not configured,
// e.g. the recommendation endpoint when no embedding provider is set up.
var ErrUnavailable = &UnavailableError{}

// UnavailableError is a sentinel error for unavailable capabilities.
type UnavailableError struct {
	Capability string
	Message    string
}

// NewUnavailableError creates an UnavailableError with a custom message.
func NewUnavailableError(capability, message string) *UnavailableError {
	return &UnavailableError{Capability: capability, Message: message}
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Capability != "" {
		return e.Capability + " is not available"
	}

	return "capability unavailable"
}

// Is implements the error interface for error comparison.
func (e *UnavailableError) Is(target error) bool {
	_, ok := target.(*UnavailableError)

	return ok
}
