package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackend marks a failure talking to Redis or MongoDB.
	ErrBackend = errors.New("cache backend error")

	// ErrConfig marks a backend string or option set that cannot be used.
	ErrConfig = errors.New("invalid cache configuration")
)

// RetryableError marks a backend failure that may go away on its own, such
// as a refused connection while a container starts.
type RetryableError struct{ Err error }

// Retryable marks err as transient. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err or anything it wraps was marked with
// [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff schedule used when connecting to remote backends.
const (
	retryAttempts = 3
	retryDelay    = time.Second
)

// RetryWithBackoff calls fn until it succeeds, returns an error not marked
// retryable, or retryAttempts calls have been made. The delay doubles after
// each failed attempt. A cancelled ctx ends the wait with ctx.Err().
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsRetryable(err) || attempt == retryAttempts {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}
