package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/babylon-scanner/internal/types"
)

// Sentinel failures shared by the reader, the store and the services.
// Wrap them with %w or a typed error that unwraps to them.
var (
	// ErrUpstreamUnavailable means the node API was unreachable or answered with a non-success status
	ErrUpstreamUnavailable = stderrors.New("node API unavailable")
	// ErrFeatureUnsupported means the node does not serve a chain-specific route
	ErrFeatureUnsupported = stderrors.New("feature not supported by node")
	// ErrStoreFailure means the persistence layer rejected a read or write
	ErrStoreFailure = stderrors.New("store failure")
	// ErrInvalidInput means a caller-supplied argument was rejected
	ErrInvalidInput = stderrors.New("invalid input")
	// ErrNotFound means the requested record does not exist
	ErrNotFound = stderrors.New("not found")
	// ErrConflict means the record already exists
	ErrConflict = stderrors.New("conflict")
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryUpstream represents node API errors
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryStore represents persistence errors
	CategoryStore ErrorCategory = "store"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// User Input Errors (4xx)

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
		Cause: ErrInvalidInput,
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
		Cause: ErrInvalidInput,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
		Cause: ErrNotFound,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "CONFLICT",
		Message:    message,
		Cause:      ErrConflict,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System Errors (5xx)

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewStoreError creates a store error for the given operation
func NewStoreError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStore,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORE_ERROR",
		Message:    fmt.Sprintf("store error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Upstream Errors

// NewUpstreamError creates a node API error
func NewUpstreamError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    "node API unavailable",
		Cause:      cause,
	}
}

// NewUpstreamTimeoutError creates a node API timeout error
func NewUpstreamTimeoutError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusGatewayTimeout,
		Code:       "UPSTREAM_TIMEOUT",
		Message:    "node API timed out",
		Cause:      cause,
	}
}

// StoreFailure wraps a persistence error so it matches ErrStoreFailure
func StoreFailure(operation string, cause error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrStoreFailure, cause)
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// If already categorized, return as-is
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	switch {
	case stderrors.Is(err, ErrUpstreamUnavailable):
		if stderrors.Is(err, context.DeadlineExceeded) {
			return NewUpstreamTimeoutError(err)
		}
		return NewUpstreamError(err)
	case stderrors.Is(err, ErrStoreFailure):
		return NewStoreError("query", err)
	case stderrors.Is(err, ErrInvalidInput):
		return &CategorizedError{
			Category:   CategoryValidation,
			StatusCode: http.StatusBadRequest,
			Code:       "INVALID_INPUT",
			Message:    err.Error(),
			Cause:      err,
		}
	case stderrors.Is(err, ErrNotFound):
		return &CategorizedError{
			Category:   CategoryNotFound,
			StatusCode: http.StatusNotFound,
			Code:       "NOT_FOUND",
			Message:    err.Error(),
			Cause:      err,
		}
	case stderrors.Is(err, ErrConflict):
		return &CategorizedError{
			Category:   CategoryConflict,
			StatusCode: http.StatusConflict,
			Code:       "CONFLICT",
			Message:    err.Error(),
			Cause:      err,
		}
	}

	// If it's a ServiceError, convert it
	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// IsUpstreamUnavailable reports whether err came from an unreachable node API
func IsUpstreamUnavailable(err error) bool {
	return stderrors.Is(err, ErrUpstreamUnavailable)
}

// IsFeatureUnsupported reports whether err means the node lacks a route
func IsFeatureUnsupported(err error) bool {
	return stderrors.Is(err, ErrFeatureUnsupported)
}

// IsStoreFailure reports whether err came from the persistence layer
func IsStoreFailure(err error) bool {
	return stderrors.Is(err, ErrStoreFailure)
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	// Retryable categories
	switch catErr.Category {
	case CategoryUpstream, CategoryStore, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
