package errors

import (
	"fmt"
)

// TridentError is the structured error type for Trident.
// It provides rich context for error handling, logging, and user presentation.
type TridentError struct {
	// Code is the unique error code (e.g., "ERR_402_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Backend, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *TridentError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TridentError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with TridentError.
func (e *TridentError) Is(target error) bool {
	if t, ok := target.(*TridentError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *TridentError) WithDetail(key, value string) *TridentError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new TridentError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *TridentError {
	return &TridentError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a TridentError from an existing error.
// The error's message becomes the TridentError message.
func Wrap(code string, err error) *TridentError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *TridentError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *TridentError {
	return New(ErrCodeInvalidInput, message, cause)
}

// BackendError creates a backend transport error.
// Backend errors are typically retryable.
func BackendError(message string, cause error) *TridentError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TridentError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a TridentError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*TridentError); ok {
		return te.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*TridentError); ok {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a TridentError.
// Returns empty string if not a TridentError.
func GetCode(err error) string {
	if te, ok := err.(*TridentError); ok {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from a TridentError.
// Returns empty string if not a TridentError.
func GetCategory(err error) Category {
	if te, ok := err.(*TridentError); ok {
		return te.Category
	}
	return ""
}
