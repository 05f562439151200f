package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeRetrieval     ErrorType = "retrieval"
	ErrorTypeStreaming     ErrorType = "streaming"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external"
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
	return e.Type == t.Type && (t.Message == "" || e.Message == t.Message)
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

// Domain error variables

var (
	// Not Found Errors
	ErrChatbotNotFound       = NewDomainError(ErrorTypeNotFound, "chatbot not found", nil)
	ErrChatbotNotReady       = NewDomainError(ErrorTypeNotFound, "chatbot is not ready", nil)
	ErrKnowledgeItemNotFound = NewDomainError(ErrorTypeNotFound, "knowledge item not found", nil)

	// Validation Errors
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyMessage = NewDomainError(ErrorTypeValidation, "message cannot be empty", nil)

	// Configuration Errors (missing provider credential), fatal and never retried
	ErrProviderNotConfigured = NewDomainError(ErrorTypeConfiguration, "generation provider is not configured", nil)

	// Rate Limit Errors
	ErrProviderRateLimited = NewDomainError(ErrorTypeRateLimit, "provider rate limit hit", nil)
	ErrRateLimitExhausted  = NewDomainError(ErrorTypeRateLimit, "rate limit retries exhausted", nil)

	// Transient Retrieval Errors, masked by the keyword-search fallback
	ErrVectorSearchFailed = NewDomainError(ErrorTypeRetrieval, "vector search failed", nil)

	// Streaming Errors
	ErrStreamIdleTimeout = NewDomainError(ErrorTypeStreaming, "stream idle timeout", nil)
	ErrStreamAborted     = NewDomainError(ErrorTypeStreaming, "stream aborted", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)

	// External Provider Errors
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "provider unavailable", nil)
	ErrProviderError       = NewDomainError(ErrorTypeExternal, "provider error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsConfigurationError checks if an error is a provider configuration error
func IsConfigurationError(err error) bool {
	return GetErrorType(err) == ErrorTypeConfiguration
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsRetrievalError checks if an error is a transient retrieval error
func IsRetrievalError(err error) bool {
	return GetErrorType(err) == ErrorTypeRetrieval
}

// IsStreamingError checks if an error is a streaming error
func IsStreamingError(err error) bool {
	return GetErrorType(err) == ErrorTypeStreaming
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
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

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external provider error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}
