package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCategory ErrorCategory
		wantStatus   int
	}{
		{
			name:         "upstream failure",
			err:          fmt.Errorf("fetch /blocks/latest: %w", ErrUpstreamUnavailable),
			wantCategory: CategoryUpstream,
			wantStatus:   http.StatusBadGateway,
		},
		{
			name:         "upstream timeout",
			err:          fmt.Errorf("%w: %w", ErrUpstreamUnavailable, context.DeadlineExceeded),
			wantCategory: CategoryUpstream,
			wantStatus:   http.StatusGatewayTimeout,
		},
		{
			name:         "store failure",
			err:          StoreFailure("insert label", stderrors.New("connection reset")),
			wantCategory: CategoryStore,
			wantStatus:   http.StatusInternalServerError,
		},
		{
			name:         "invalid input",
			err:          fmt.Errorf("confidence out of range: %w", ErrInvalidInput),
			wantCategory: CategoryValidation,
			wantStatus:   http.StatusBadRequest,
		},
		{
			name:         "wrapped categorized error",
			err:          fmt.Errorf("handler: %w", NewNotFoundError("label", "7")),
			wantCategory: CategoryNotFound,
			wantStatus:   http.StatusNotFound,
		},
		{
			name:         "unknown",
			err:          stderrors.New("boom"),
			wantCategory: CategorySystem,
			wantStatus:   http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err)
			if got.Category != tt.wantCategory {
				t.Errorf("Categorize().Category = %v, want %v", got.Category, tt.wantCategory)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("Categorize().StatusCode = %v, want %v", got.StatusCode, tt.wantStatus)
			}
		})
	}

	assert.Nil(t, Categorize(nil))
}

func TestSentinelHelpers(t *testing.T) {
	store := StoreFailure("list labels", stderrors.New("timeout"))
	assert.True(t, IsStoreFailure(store))
	assert.False(t, IsUpstreamUnavailable(store))
	assert.Contains(t, store.Error(), "list labels")

	up := fmt.Errorf("wrap: %w", ErrFeatureUnsupported)
	assert.True(t, IsFeatureUnsupported(up))

	assert.True(t, stderrors.Is(NewInvalidAddressError("x"), ErrInvalidInput))
	assert.True(t, stderrors.Is(NewConflictError("dup"), ErrConflict))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrUpstreamUnavailable)))
	assert.False(t, IsRetryable(NewInvalidParameterError("limit", "must be positive")))
	assert.True(t, IsUserError(NewInvalidParameterError("limit", "must be positive")))
	assert.False(t, IsRetryable(nil))
}

func TestToServiceError(t *testing.T) {
	svc := NewInvalidAddressError("cosmos1abc").ToServiceError()
	assert.Equal(t, "INVALID_ADDRESS", svc.Code)
	assert.Equal(t, "cosmos1abc", svc.Details["address"])
}
