// Package utils holds the bounded retry loop and calendar-day helpers
// shared by the executor and the providers.
package utils

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DelayFunc returns the wait before the next attempt. attempt is the 1-based
// number of the attempt that just failed with err.
type DelayFunc func(attempt int, err error) time.Duration

// RetryConfig holds configuration for a bounded retry loop.
//
// The loop itself knows nothing about HTTP. Callers describe which errors are
// worth another attempt and how long to wait before it.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// Delay computes the wait between attempts. Nil means no wait.
	Delay DelayFunc

	// RetryableErrors determines which errors should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool

	// Sleep performs the wait. Nil uses SleepContext.
	Sleep SleepFunc

	// OnRetry is called after a retryable failure, before the wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Retry runs fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached.
//
// On exhaustion the last error is returned unchanged so callers can still
// classify it. A context cancelled during a wait returns ctx.Err().
func Retry(ctx context.Context, config RetryConfig, fn func(attempt int) error) error {
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	sleep := config.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		if config.RetryableErrors != nil && !config.RetryableErrors(lastErr) {
			return lastErr
		}

		if attempt == maxAttempts {
			break
		}

		var wait time.Duration
		if config.Delay != nil {
			wait = config.Delay(attempt, lastErr)
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, lastErr, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

// SleepContext waits for d, returning early with ctx.Err() when ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// FixedDelay waits the same duration before every retry.
func FixedDelay(d time.Duration) DelayFunc {
	return func(int, error) time.Duration {
		return d
	}
}

// ExponentialDelay grows the wait by factor after each failure, capped at max,
// with up to jitter (0.0-1.0) of extra random delay.
func ExponentialDelay(initial, max time.Duration, factor, jitter float64) DelayFunc {
	return func(attempt int, _ error) time.Duration {
		delay := float64(initial)
		for i := 1; i < attempt; i++ {
			delay *= factor
			if time.Duration(delay) >= max {
				delay = float64(max)
				break
			}
		}

		d := time.Duration(delay)
		if jitter > 0 {
			d += time.Duration(randomInt64n(int64(float64(d) * jitter)))
		}
		return d
	}
}

// randomInt64n returns a random int64 in [0, n), or 0 when n <= 0.
func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano() % n
	}

	return int64(binary.BigEndian.Uint64(b[:])>>1) % n
}
