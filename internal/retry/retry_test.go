package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/babylon-scanner/internal/errors"
)

var (
	errUpstream = fmt.Errorf("status 503: %w", apperrors.ErrUpstreamUnavailable)
	errNoRoute  = errors.Join(apperrors.ErrUpstreamUnavailable, apperrors.ErrFeatureUnsupported)
)

func fastConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"upstream unavailable", errUpstream, true},
		{"store failure", apperrors.StoreFailure("list", errors.New("reset")), true},
		{"route missing", errNoRoute, false},
		{"invalid parameter", apperrors.NewInvalidParameterError("limit", "bad"), false},
		{"unexpected", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errUpstream
		}
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	assert.NoError(t, result.LastError)
}

func TestWithExponentialBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(5), func(ctx context.Context, attempt int) error {
		calls++
		return errNoRoute
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.LastError, apperrors.ErrFeatureUnsupported)
}

func TestWithExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(4), func(ctx context.Context, attempt int) error {
		calls++
		return errUpstream
	})

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, 4, calls)
}

func TestWithExponentialBackoff_CustomPredicate(t *testing.T) {
	cfg := fastConfig(3)
	cfg.Retryable = func(err error) bool { return true }

	calls := 0
	WithExponentialBackoff(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("always")
	})
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errUpstream
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.LastError, context.Canceled)
}

func TestCalculateDelay(t *testing.T) {
	cfg := &RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, calculateDelay(cfg, 3))
	assert.Equal(t, 10*time.Second, calculateDelay(cfg, 5))
}

func TestDo(t *testing.T) {
	t.Run("returns value", func(t *testing.T) {
		attempts := 0
		v, err := Do(context.Background(), fastConfig(3), func(ctx context.Context) ([]string, error) {
			attempts++
			if attempts == 1 {
				return nil, errUpstream
			}
			return []string{"a", "b"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	})

	t.Run("wraps last error", func(t *testing.T) {
		v, err := Do(context.Background(), fastConfig(2), func(ctx context.Context) (int, error) {
			return 7, errUpstream
		})
		require.Error(t, err)
		assert.Zero(t, v)
		assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
		assert.Contains(t, err.Error(), "after 2 attempts")
	})

	t.Run("permanent error is returned as is", func(t *testing.T) {
		_, err := Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
			return 0, errNoRoute
		})
		assert.Equal(t, errNoRoute, err)
	})
}
