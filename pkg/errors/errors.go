package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeForbidden  ErrorType = "FORBIDDEN"
	ErrorTypeBulkLimit  ErrorType = "BULK_LIMIT_EXCEEDED"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// Category splits the taxonomy into the two halves the HTTP layer cares
// about: client mistakes vs server failures.
type Category string

const (
	CategoryClient Category = "CLIENT_ERROR"
	CategoryServer Category = "SERVER_ERROR"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error

	// Details carries structured context (limits, attempted counts,
	// conflicting values) so the UI can explain the failure without
	// another round trip.
	Details map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error type to the HTTP status the transport layer
// should respond with.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ErrorTypeValidation, ErrorTypeBulkLimit:
		return 400
	case ErrorTypeForbidden:
		return 403
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeConflict:
		return 409
	default:
		return 500
	}
}

// Category returns CLIENT_ERROR for 4xx kinds and SERVER_ERROR otherwise.
func (e *AppError) Category() Category {
	if e.StatusCode() < 500 {
		return CategoryClient
	}
	return CategoryServer
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

// NewNotFound creates a not found error
func NewNotFound(resource, id string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id '%s' not found", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

// NewCodeExists creates the conflict raised when a business code is already
// taken within the caller's company.
func NewCodeExists(resource, code string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    "CODE_EXISTS",
		Message: fmt.Sprintf("%s code '%s' already exists", resource, code),
		Details: map[string]interface{}{"resource": resource, "code": code},
	}
}

// NewConflict creates a generic conflict error
func NewConflict(code, message string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewForbidden creates a forbidden error
func NewForbidden(code, message string) error {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    code,
		Message: message,
	}
}

// NewSystemRecordReadonly is the forbidden error raised when a caller tries
// to modify a platform-managed record.
func NewSystemRecordReadonly(resource, id string) error {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    "SYSTEM_RECORD_READONLY",
		Message: fmt.Sprintf("%s '%s' is a system record and cannot be modified", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

// NewBulkLimitExceeded creates the structural-limit error for oversized
// batch operations. The limit and attempted count are carried in Details.
func NewBulkLimitExceeded(operation string, limit, actual int) error {
	return &AppError{
		Type:    ErrorTypeBulkLimit,
		Code:    "BULK_LIMIT_EXCEEDED",
		Message: fmt.Sprintf("bulk %s of %d records exceeds the limit of %d", operation, actual, limit),
		Details: map[string]interface{}{"operation": operation, "limit": limit, "actual": actual},
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
		Err:     err,
	}
}

// NewRepository wraps an unexpected data-client failure; the operation name
// is kept for server-side logs, the cause never reaches the client payload.
func NewRepository(operation string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    "REPOSITORY_ERROR",
		Message: fmt.Sprintf("repository operation '%s' failed", operation),
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Details: appErr.Details,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
		Err:     err,
	}
}

// Type checking functions

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool { return isType(err, ErrorTypeConflict) }

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool { return isType(err, ErrorTypeForbidden) }

// IsBulkLimitExceeded checks if an error is a bulk-limit error
func IsBulkLimitExceeded(err error) bool { return isType(err, ErrorTypeBulkLimit) }

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool { return isType(err, ErrorTypeInternal) }

// CodeOf returns the application error code, or "INTERNAL_ERROR" for
// unclassified errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}
