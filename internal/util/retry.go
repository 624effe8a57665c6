package util

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// PermanentError wraps an error that must not be retried. Retry unwraps it
// and returns the inner error immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay, with +/-50% jitter applied to each sleep. It returns nil on
// the first successful call, the inner error as soon as fn returns a
// PermanentError, or the last error if all attempts fail. Context
// cancellation is honoured between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			sleep := delay
			if sleep > 0 {
				sleep = delay/2 + time.Duration(rand.Int64N(int64(delay)))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			delay *= 2
		}
	}

	return err
}
