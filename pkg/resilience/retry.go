package resilience

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times. Between failed attempts it sleeps for
// backoff.NextDelay(i) where i is the 0-indexed failed attempt. Errors for
// which retryable returns false are returned immediately. When every attempt
// fails the last error is returned.
//
// The wait honours ctx; a cancelled context returns ctx.Err().
func Retry(ctx context.Context, attempts int, backoff BackoffStrategy, retryable func(error) bool, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if err := Sleep(ctx, backoff.NextDelay(attempt)); err != nil {
			return err
		}
	}
	return err
}

// Sleep blocks for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
