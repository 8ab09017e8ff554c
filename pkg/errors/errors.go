// Package errors defines the machine-readable denial and failure codes the
// admission gate surfaces to callers. Denials are values, never panics, so a
// shared request handler can always render a clean response.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// Denial and failure codes.
const (
	CodeMissingIdentity    = "missing_identity"
	CodeGuestLimitExceeded = "guest_limit_exceeded"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeStorageUnavailable = "storage_unavailable"
)

// GateError represents a standardized admission failure.
// It carries everything needed for logging and a user-facing response:
// a stable code, tier-appropriate wording, and a reset timestamp when the
// denial is quota-driven. Raw storage errors never leak through it.
type GateError struct {
	StatusCode int       `json:"status_code"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	ResetAt    time.Time `json:"reset_at"`
	Retryable  bool      `json:"-"`
}

// Error implements the error interface.
func (e *GateError) Error() string {
	return fmt.Sprintf("[%s] %s (code=%d)", e.Code, e.Message, e.StatusCode)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *GateError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// StatusForCode maps a denial code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case CodeMissingIdentity:
		return http.StatusBadRequest
	case CodeGuestLimitExceeded, CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// NewMissingIdentityError creates a denial for requests with no usable
// identity (400). No store round-trip precedes this denial.
func NewMissingIdentityError() *GateError {
	return &GateError{
		StatusCode: http.StatusBadRequest,
		Code:       CodeMissingIdentity,
		Message:    "could not identify the caller for this request",
		Retryable:  false,
	}
}

// NewGuestLimitError creates a denial for exhausted guest quotas (429).
func NewGuestLimitError(resetAt time.Time) *GateError {
	return &GateError{
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeGuestLimitExceeded,
		Message:    "guest message limit reached",
		ResetAt:    resetAt,
		Retryable:  true,
	}
}

// NewRateLimitError creates a denial for exhausted daily quotas (429).
func NewRateLimitError(resetAt time.Time) *GateError {
	return &GateError{
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    "daily message limit reached",
		ResetAt:    resetAt,
		Retryable:  true,
	}
}

// NewStorageUnavailableError creates a fail-closed denial for quota-store
// failures (503). Cache-store failures never produce this; the cache fails
// open instead.
func NewStorageUnavailableError() *GateError {
	return &GateError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeStorageUnavailable,
		Message:    "service is temporarily unavailable, please retry shortly",
		Retryable:  true,
	}
}
