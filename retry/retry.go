// Package retry provides generic retry logic with jittered exponential
// backoff for transient failures. It respects context cancellation and is
// used for facilitator supported/verify calls, never for settlement.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (including initial attempt)
	InitialDelay time.Duration // Initial delay between retries
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
	Jitter       float64       // Fraction of each delay randomized away, 0..1
}

// DefaultConfig provides sensible defaults for retry operations.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
	Jitter:       0.2,
}

// IsRetryable determines if an error should trigger a retry. A nil
// IsRetryable retries every error.
type IsRetryable func(error) bool

// WithRetry executes a function with jittered exponential backoff until it
// succeeds, the error is not retryable, the attempts run out, or the context
// ends.
func WithRetry[T any](
	ctx context.Context,
	config Config,
	isRetryable IsRetryable,
	fn func() (T, error),
) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt.
		if attempt < config.MaxAttempts-1 {
			select {
			case <-time.After(jittered(delay, config.Jitter)):
				delay = time.Duration(float64(delay) * config.Multiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// WithSimpleRetry uses the default configuration.
func WithSimpleRetry[T any](
	ctx context.Context,
	fn func() (T, error),
	isRetryable IsRetryable,
) (T, error) {
	return WithRetry(ctx, DefaultConfig, isRetryable, fn)
}

// jittered shortens a delay by a random fraction up to jitter, keeping
// concurrent retriers from synchronizing their attempts.
func jittered(delay time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || delay <= 0 {
		return delay
	}
	if jitter > 1 {
		jitter = 1
	}
	return delay - time.Duration(rand.Float64()*jitter*float64(delay))
}
