package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeValidation indicates invalid operator input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeFetch indicates a manifest store fetch failure
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeClusterUnreachable indicates the cluster API could not be contacted
	ErrorTypeClusterUnreachable ErrorType = "cluster_unreachable"
	// ErrorTypeRejected indicates the cluster rejected a patch as invalid
	ErrorTypeRejected ErrorType = "rejected"
	// ErrorTypeConflict indicates a transient conflict (resource version mismatch)
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeNotFound indicates a resource not found error
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of the same type
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Type == appErr.Type
	}
	return false
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

// NewFetchError creates a new manifest fetch error
func NewFetchError(message string, cause error, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeFetch,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewClusterUnreachableError creates a new cluster unreachable error
func NewClusterUnreachableError(message string, cause error, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeClusterUnreachable,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewRejectedError creates a new patch rejection error
func NewRejectedError(message string, cause error, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeRejected,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewConflictError creates a new transient conflict error
func NewConflictError(message string, cause error, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Details: details,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeTimeout,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Cause:   cause,
	}
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsFetchError checks if the error is a manifest fetch error
func IsFetchError(err error) bool {
	return isType(err, ErrorTypeFetch)
}

// IsClusterUnreachableError checks if the error is a cluster unreachable error
func IsClusterUnreachableError(err error) bool {
	return isType(err, ErrorTypeClusterUnreachable)
}

// IsRejectedError checks if the error is a patch rejection error
func IsRejectedError(err error) bool {
	return isType(err, ErrorTypeRejected)
}

// IsConflictError checks if the error is a transient conflict error
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// GetErrorDetails extracts details from an AppError
func GetErrorDetails(err error) map[string]interface{} {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}
