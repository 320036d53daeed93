package httpx

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     32 * time.Second,
		Multiplier:     2.0,
	}
}

// ExponentialBackoff calculates wait time with jitter.
// Formula: min(initial * multiplier^attempt, maxBackoff) ± 25% jitter
func ExponentialBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.Multiplier, float64(attempt))

	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	jitterRange := 0.25 * backoff
	jitter := (rand.Float64() * 2 * jitterRange) - jitterRange
	result := backoff + jitter

	if result > float64(config.MaxBackoff) {
		result = float64(config.MaxBackoff)
	}
	if result < 0 {
		result = 0
	}

	return time.Duration(result)
}

// ShouldRetry determines if an error is retryable.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var callErr *Error
	if errors.As(err, &callErr) {
		return callErr.IsRetryable()
	}

	// Generic errors are not retryable.
	return false
}

// Operation is a function that can be retried.
type Operation func(ctx context.Context) error

// RetryWithBackoff executes an operation with exponential backoff retry logic.
func RetryWithBackoff(ctx context.Context, operation Operation, config RetryConfig) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !ShouldRetry(err) {
			return err
		}
		if attempt >= config.MaxRetries {
			return err
		}

		backoff := ExponentialBackoff(attempt, config)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
