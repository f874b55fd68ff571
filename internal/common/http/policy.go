package http

import (
	"context"
	stderrors "errors"
	"time"

	"infolio/internal/common/errors"
	"infolio/internal/common/logging"
	"infolio/internal/common/utils"
)

const (
	// DefaultMaxAttempts bounds one Execute call, including the first attempt
	DefaultMaxAttempts = 5
	// FallbackWait is the wait after a retryable failure that names no delay
	FallbackWait = 2 * time.Second
	// DefaultRetryAfter applies to a 429 without a usable Retry-After header
	DefaultRetryAfter = time.Second
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. Rate limited attempts wait exactly the server-directed delay;
// every other retryable failure waits FallbackWait. The wait never grows.
//
// The policy holds no state between calls.
type RetryPolicy struct {
	MaxAttempts  int
	FallbackWait time.Duration
	// Sleep performs the wait. Nil uses utils.SleepContext.
	Sleep utils.SleepFunc
}

// DefaultRetryPolicy returns the 5 attempt, 2 second fallback policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		FallbackWait: FallbackWait,
	}
}

// Retryable reports whether err warrants another attempt.
// Rate limit and transport errors do; bad requests and authentication failures never do.
func (p RetryPolicy) Retryable(err error) bool {
	return errors.IsRetryable(err)
}

// Wait returns the delay before the attempt following err
func (p RetryPolicy) Wait(_ int, err error) time.Duration {
	if d, ok := errors.RetryAfter(err); ok {
		return d
	}
	return p.FallbackWait
}

// Run calls fn until it succeeds, fails terminally, or the attempt bound is
// reached. The last error is returned unchanged on exhaustion. Cancellation
// of ctx surfaces as a transport error wrapping ctx.Err().
func (p RetryPolicy) Run(ctx context.Context, logger logging.Logger, fn func(attempt int) error) error {
	logger = logging.OrNop(logger)

	err := utils.Retry(ctx, utils.RetryConfig{
		MaxAttempts:     p.MaxAttempts,
		Delay:           p.Wait,
		RetryableErrors: p.Retryable,
		Sleep:           p.Sleep,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Warn("Request attempt failed, retrying",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", p.MaxAttempts),
				logging.Duration("wait", wait),
				logging.String("error_type", string(errors.GetType(err))),
				logging.Err(err))
		},
	}, fn)

	if err != nil && isContextError(err) {
		return errors.TransportError("request cancelled", err)
	}
	return err
}

// isContextError matches the bare context errors utils.Retry returns,
// not classified errors that merely wrap one.
func isContextError(err error) bool {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return false
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
