package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an error as reported to callers
type ErrorType string

const (
	ErrorTypeAuthentication    ErrorType = "authentication_error"
	ErrorTypeValidation        ErrorType = "validation_error"
	ErrorTypeProcessing        ErrorType = "processing_error"
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeNotFound          ErrorType = "not_found"
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

// Is matches any DomainError of the same type
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

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is comparisons. Never mutate these; build a new
// DomainError with NewDomainError when details are needed.
var (
	ErrInvalidToken = NewDomainError(ErrorTypeAuthentication, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeAuthentication, "authentication token expired", nil)
	ErrMissingToken = NewDomainError(ErrorTypeAuthentication, "missing authentication token", nil)

	ErrEmptyQuery    = NewDomainError(ErrorTypeValidation, "Query is required and cannot be empty", nil)
	ErrEmptyText     = NewDomainError(ErrorTypeValidation, "Text is required and cannot be empty", nil)
	ErrUnknownAgent  = NewDomainError(ErrorTypeValidation, "unknown preferred agent", nil)
	ErrEmptyDocument = NewDomainError(ErrorTypeValidation, "no text could be extracted from document", nil)

	ErrUnsupportedFormat = NewDomainError(ErrorTypeUnsupportedFormat, "unsupported file format", nil)

	ErrProviderNotConfigured = NewDomainError(ErrorTypeProcessing, "LLM provider is not configured", nil)
	ErrVoiceNotConfigured    = NewDomainError(ErrorTypeProcessing, "Voice generation service is not configured", nil)

	ErrDocumentNotFound = NewDomainError(ErrorTypeNotFound, "document not found", nil)
	ErrJobNotFound      = NewDomainError(ErrorTypeNotFound, "processing job not found", nil)
)

// Error type checking helper functions

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	return GetErrorType(err) == ErrorTypeAuthentication
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsProcessingError checks if an error is a processing error
func IsProcessingError(err error) bool {
	return GetErrorType(err) == ErrorTypeProcessing
}

// IsUnsupportedFormatError checks if an error is an unsupported format error
func IsUnsupportedFormatError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnsupportedFormat
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorMessage returns the caller-facing message of a domain error.
// Wrapped causes are not included.
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// Validation returns a new validation error with the given message
func Validation(message string) error {
	return NewDomainError(ErrorTypeValidation, message, nil)
}

// WrapProcessing wraps an error as a processing error
func WrapProcessing(message string, err error) error {
	return NewDomainError(ErrorTypeProcessing, message, err)
}

// UnsupportedFormat returns an unsupported format error naming the extension
func UnsupportedFormat(ext string) error {
	return NewDomainError(ErrorTypeUnsupportedFormat,
		fmt.Sprintf("Unsupported file format: %s", ext), nil).WithDetail("extension", ext)
}
