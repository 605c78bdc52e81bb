package fetcher

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
)

// RetryPolicy decides how many times a transient failure is retried and how long to wait in between.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Backoff returns the wait after the failed attempt n (0-based).
	Backoff func(attempt int) time.Duration
}

// ExponentialBackoff waits base * 2^attempt.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     ExponentialBackoff(DefaultBackoffBase),
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
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
