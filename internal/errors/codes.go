// Package errors provides structured error handling for Trident.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store/IO errors
//   - 3XX: Backend network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates store and disk I/O errors.
	CategoryStore Category = "STORE"
	// CategoryBackend indicates retrieval backend transport errors.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeWeightsInvalid    = "ERR_103_WEIGHTS_INVALID"
	ErrCodeNoBackendsEnabled = "ERR_104_NO_BACKENDS_ENABLED"

	// Store errors (200-299)
	ErrCodeStoreOpen    = "ERR_201_STORE_OPEN"
	ErrCodeStoreClosed  = "ERR_202_STORE_CLOSED"
	ErrCodeStoreCorrupt = "ERR_203_STORE_CORRUPT"
	ErrCodeStoreQuery   = "ERR_204_STORE_QUERY"

	// Backend errors (300-399)
	ErrCodeBackendTimeout     = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"
	ErrCodeEmbeddingFailed    = "ERR_303_EMBEDDING_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty    = "ERR_402_QUERY_EMPTY"
	ErrCodeQueryTooShort = "ERR_403_QUERY_TOO_SHORT"
	ErrCodeQueryTooLong  = "ERR_404_QUERY_TOO_LONG"
	ErrCodeInvalidLimit  = "ERR_405_INVALID_LIMIT"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeAllBackendsFailed = "ERR_502_ALL_BACKENDS_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "103" from "ERR_103_WEIGHTS_INVALID".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeWeightsInvalid, ErrCodeNoBackendsEnabled, ErrCodeStoreCorrupt:
		return SeverityFatal
	}

	// Retryable backend errors degrade the response, they don't fail it.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable, ErrCodeEmbeddingFailed:
		return true
	default:
		return false
	}
}
