// Package errors provides standardized error handling for the loan workflow and its HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeConcurrentRequest ErrorCode = "CONCURRENT_REQUEST"
	ErrCodeKYCRejected       ErrorCode = "KYC_REJECTED"
	ErrCodeNotSubscribed     ErrorCode = "NOT_SUBSCRIBED"
	ErrCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// Metadata keys carried by conflict errors.
const (
	MetaStatusHint    = "statusHint"
	MetaCurrentStatus = "currentStatus"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable request validation error.
func NewValidationError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConcurrencyConflictError reports a refused admission. The current status
// travels in the metadata together with the FAILED_CONCURRENT hint.
func NewConcurrencyConflictError(message, hint, currentStatus string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConcurrentRequest,
		Message:   message,
		Retryable: false,
		Metadata: map[string]interface{}{
			MetaStatusHint:    hint,
			MetaCurrentStatus: currentStatus,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewKYCRejectedError creates a subscription failure for a missing or inactive identity.
func NewKYCRejectedError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeKYCRejected,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotSubscribedError(customerNumber string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotSubscribed,
		Message:   "Customer not subscribed or found.",
		Details:   fmt.Sprintf("customerNumber: %s", customerNumber),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError wraps a storage backend failure.
func NewStoreUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Application store unavailable",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "An internal error occurred.",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Inspection Helpers
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// StatusHint returns the status hint of a conflict error, or "".
func StatusHint(err error) string {
	stdErr, ok := AsStandard(err)
	if !ok || stdErr.Metadata == nil {
		return ""
	}
	hint, _ := stdErr.Metadata[MetaStatusHint].(string)
	return hint
}

// ==========================
// 4. HTTP Mapping
// ==========================

// HTTPStatus maps an error code to the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeKYCRejected, ErrCodeNotSubscribed:
		return http.StatusBadRequest
	case ErrCodeConcurrentRequest:
		return http.StatusConflict
	case ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "KYC") || strings.Contains(codeStr, "SUBSCRIBED"):
		return "SUBSCRIPTION"
	case strings.Contains(codeStr, "CONCURRENT"):
		return "CONCURRENCY"
	case strings.Contains(codeStr, "STORE"):
		return "STORAGE"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	default:
		return "OTHER"
	}
}
