package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"infolio/internal/common/errors"
)

// Limiter blocks callers until the next request may be sent
type Limiter interface {
	Wait(ctx context.Context) error
	TryAcquire() bool
	Stats() map[string]interface{}
}

// localLimiter implements rate limiting using golang.org/x/time/rate
type localLimiter struct {
	config  Config
	limiter *rate.Limiter
}

// NewLocalLimiter creates an in-process token bucket limiter
func NewLocalLimiter(config Config) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	burst := 0
	if config.Enabled {
		limit = rate.Every(config.Interval())
		burst = config.BurstSize
	}

	return &localLimiter{
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// Wait blocks until a request can be made according to the rate limit.
// A cancelled context surfaces as a transport error wrapping ctx.Err().
func (rl *localLimiter) Wait(ctx context.Context) error {
	if !rl.config.Enabled {
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.TransportError("rate limiter wait cancelled", ctx.Err())
		}
		// the wait would outlast the context deadline
		return errors.TransportError("rate limiter wait exceeds deadline", err)
	}
	return nil
}

// TryAcquire attempts to acquire a token without blocking
func (rl *localLimiter) TryAcquire() bool {
	if !rl.config.Enabled {
		return true
	}
	return rl.limiter.Allow()
}

// Stats returns rate limiter statistics
func (rl *localLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":             "local",
		"enabled":          rl.config.Enabled,
		"max_requests":     rl.config.MaxRequests,
		"window":           rl.config.Window.String(),
		"burst_size":       rl.config.BurstSize,
		"interval":         rl.config.Interval().String(),
		"available_tokens": rl.limiter.TokensAt(time.Now()),
	}
}
