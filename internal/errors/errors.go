package errors

import "fmt"

// ErrorCode classifies a capsule-store error.
type ErrorCode string

const (
	ErrValidation         ErrorCode = "VALIDATION"          // caller-supplied data violates a field constraint
	ErrNotFound           ErrorCode = "NOT_FOUND"           // referenced capsule does not exist
	ErrIllegalState       ErrorCode = "ILLEGAL_STATE"       // current status forbids the operation
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE" // database could not be opened or queried
	ErrIOFailure          ErrorCode = "IO_FAILURE"          // filesystem or row-decoding failure
)

// CapsuleError represents a structured error with code, message, and details.
type CapsuleError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CapsuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation creates a validation error with a user-displayable message.
func NewValidation(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrValidation,
		Message: msg,
	}
}

// NewValidationField creates a validation error tied to a specific field.
func NewValidationField(field, msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrValidation,
		Message: msg,
		Details: map[string]any{"field": field},
	}
}

// NewNotFound creates an error for a capsule that cannot be found.
func NewNotFound(id string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("capsule not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewIllegalState creates an error for an operation forbidden by the capsule's status.
func NewIllegalState(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrIllegalState,
		Message: msg,
	}
}

// NewStorageUnavailable wraps a database-level failure.
func NewStorageUnavailable(err error) *CapsuleError {
	msg := "storage unavailable"
	if err != nil {
		msg = err.Error()
	}
	return &CapsuleError{
		Code:    ErrStorageUnavailable,
		Message: msg,
	}
}

// NewIOFailure wraps a filesystem or row-decoding failure.
func NewIOFailure(err error) *CapsuleError {
	msg := "i/o failure"
	if err != nil {
		msg = err.Error()
	}
	return &CapsuleError{
		Code:    ErrIOFailure,
		Message: msg,
	}
}

// Is checks if an error is a CapsuleError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CapsuleError); ok {
		return cErr.Code == code
	}
	return false
}
