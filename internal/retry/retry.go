// Package retry runs operations with exponential backoff for callers that can afford to wait,
// such as background jobs. Request-path reads never retry.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts, including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
	// Retryable decides whether an error is worth another attempt; nil uses IsRetryable
	Retryable func(error) bool
}

// DefaultRetryConfig returns the configuration used by background jobs.
// Pattern: 1s, 2s, max 10s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// IsRetryable retries transient node and store failures. A node that answered
// "not found" or "not implemented" will answer the same way again.
func IsRetryable(err error) bool {
	if err == nil || apperrors.IsFeatureUnsupported(err) {
		return false
	}
	if apperrors.IsUserError(err) {
		return false
	}
	return apperrors.IsRetryable(err)
}

// WithExponentialBackoff executes a function with exponential backoff retry logic
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	maxAttempts := max(config.MaxAttempts, 1)
	result := &RetryResult{}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("operation succeeded after retry")
			}
			return result
		}
		result.LastError = err

		if !retryable(err) {
			break
		}
		if attempt >= maxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts":      attempt,
				"totalDuration": time.Since(startTime),
			}).WithError(err).Warn("operation failed after max retry attempts")
			break
		}

		delay := calculateDelay(config, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": maxAttempts,
			"delay":       delay,
		}).WithError(err).Debug("operation failed, retrying with exponential backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	// initialDelay * multiplier^(attempt-1)
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// Do runs fn under config and returns its value. The final error wraps the last attempt's
// error so errors.Is still sees the original failure.
func Do[T any](ctx context.Context, config *RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	result := WithExponentialBackoff(ctx, config, func(ctx context.Context, _ int) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if !result.Success {
		var zero T
		if result.Attempts > 1 {
			return zero, fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
		}
		return zero, result.LastError
	}
	return value, nil
}
