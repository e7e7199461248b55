package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeExhausted  ErrorType = "exhausted"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a caller-input error
func NewValidationError(message string) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message}
}

// NewExhaustedError creates the terminal error returned when the requested
// model and every fallback candidate failed
func NewExhaustedError(message string, lastErr error) *DomainError {
	return &DomainError{Type: ErrorTypeExhausted, Message: message, Err: lastErr}
}

// NewInternalError creates an internal error
func NewInternalError(message string, err error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// GetErrorType returns the error type, or internal for unknown errors
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails extracts details from a DomainError, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsValidationError checks whether err is a caller-input rejection
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsExhaustedError checks whether err is a fallback-exhaustion failure
func IsExhaustedError(err error) bool {
	return GetErrorType(err) == ErrorTypeExhausted
}
