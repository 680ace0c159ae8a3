package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy. The delay between
// attempts is fixed.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Logger      *Logger

	// OnRetry, if set, is called before each backoff.
	OnRetry func(attempt int, err error)
	// Sleep defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, MaxAttempts is reached, or ctx is done. fn
// receives the 1-based attempt number.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(attempt int) error) error {
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < r.MaxAttempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v; retrying in %v",
					operationName, attempt, r.MaxAttempts, lastErr, r.Delay)
			}
			if r.OnRetry != nil {
				r.OnRetry(attempt, lastErr)
			}
			if err := sleep(ctx, r.Delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, r.MaxAttempts, lastErr)
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
