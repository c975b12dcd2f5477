package domain

import "errors"

// ErrorCode is a machine-readable classification for application errors.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeInvalidReference ErrorCode = "INVALID_REFERENCE"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeTerminalState    ErrorCode = "TERMINAL_STATE"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError is a typed application error carrying a classification code.
type AppError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// NewValidationError creates an error for malformed input.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewInvalidReferenceError creates an error for a missing or inactive referenced entity.
func NewInvalidReferenceError(message string) *AppError {
	return &AppError{Code: CodeInvalidReference, Message: message}
}

// NewUnauthorizedError creates an error for missing or invalid credentials.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewForbiddenError creates an error for a denied authorization decision.
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewTerminalStateError creates an error for a transition requested from a closed booking.
func NewTerminalStateError(message string) *AppError {
	return &AppError{Code: CodeTerminalState, Message: message}
}

// NewConflictError creates an error for a failed optimistic-concurrency precondition.
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewNotFoundError creates an error for a missing entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: entity + " not found: " + id}
}

// CodeOf extracts the error code from err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
