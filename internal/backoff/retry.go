package backoff

import (
	"context"
	"time"
)

// Retry runs fn up to maxAttempts times.
//
// After a failed attempt fn is retried only when isRetryable reports true for
// its error and attempts remain; the wait before the next attempt is
// delay(attempt). The last error from fn is returned unchanged so callers can
// classify it. Context cancellation during a wait returns ctx.Err().
//
// A nil isRetryable retries every error. A nil delay does not wait.
func Retry[T any](
	ctx context.Context,
	maxAttempts int,
	isRetryable func(error) bool,
	delay func(attempt int) time.Duration,
	fn func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		value, err := fn(ctx, attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if isRetryable != nil && !isRetryable(err) {
			break
		}
		if delay != nil {
			if err := SleepWithContext(ctx, delay(attempt)); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}

// SleepWithContext waits for d or until ctx is done, returning ctx.Err() in
// the latter case. Non-positive durations return immediately.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
