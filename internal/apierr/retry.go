package apierr

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig controls the backoff schedule for transient API errors.
//
// Attempts is the total number of tries, including the first; values below
// 1 are treated as 1. BaseDelay <= 0 becomes 1ms, MaxDelay <= 0 becomes
// BaseDelay.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// normalized returns the config with out-of-range fields clamped.
func (c RetryConfig) normalized() RetryConfig {
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.BaseDelay
	}
	return c
}

// RetryWithBackoff runs fn up to cfg.Attempts times, doubling the delay
// between tries up to cfg.MaxDelay. shouldRetry decides which errors are
// worth another try; nil means Retryable.
//
// Context cancellation ends the loop immediately: before an attempt, during
// a backoff sleep, and when fn itself failed because the context went away
// mid-call, even if a classifier wrapped that failure as transient.
func RetryWithBackoff[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	cfg = cfg.normalized()
	if shouldRetry == nil {
		shouldRetry = Retryable
	}

	var zero T
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("attempt %d interrupted: %w", attempt, ctxErr)
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt == cfg.Attempts {
			return zero, fmt.Errorf("gave up after %d attempts: %w", cfg.Attempts, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, cfg.MaxDelay)
	}
}
