package ratelimit

import (
	"context"
	"time"

	"infolio/internal/common/errors"
	"infolio/internal/common/utils"
)

// WindowCounter is the Redis surface the distributed limiter needs;
// *redis.Client satisfies it.
type WindowCounter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryIn time.Duration, err error)
}

// distributedLimiter shares one fixed-window quota between every process
// using the same key. Redis errors let the request through.
type distributedLimiter struct {
	config  Config
	counter WindowCounter
	key     string
	sleep   utils.SleepFunc
}

// NewDistributedLimiter creates a limiter whose quota is counted in Redis
// under key, so concurrent processes calling the same provider share it.
func NewDistributedLimiter(config Config, counter WindowCounter, key string) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, errors.ConfigError("redis client is required for distributed rate limiter")
	}
	if key == "" {
		return nil, errors.ConfigError("distributed rate limiter needs a key")
	}

	return &distributedLimiter{
		config:  config,
		counter: counter,
		key:     "infolio:ratelimit:" + key,
		sleep:   utils.SleepContext,
	}, nil
}

// Wait blocks until the shared window has room. A full window is waited out;
// a cancelled context surfaces as a transport error.
func (rl *distributedLimiter) Wait(ctx context.Context) error {
	if !rl.config.Enabled {
		return nil
	}

	for {
		allowed, retryIn := rl.check(ctx)
		if allowed {
			return nil
		}
		if err := rl.sleep(ctx, retryIn); err != nil {
			return errors.TransportError("rate limiter wait cancelled", err)
		}
	}
}

func (rl *distributedLimiter) TryAcquire() bool {
	if !rl.config.Enabled {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	allowed, _ := rl.check(ctx)
	return allowed
}

func (rl *distributedLimiter) check(ctx context.Context) (bool, time.Duration) {
	allowed, retryIn, err := rl.counter.CheckRateLimit(ctx, rl.key, rl.config.MaxRequests, rl.config.Window)
	if err != nil {
		return true, 0
	}
	if retryIn < 10*time.Millisecond {
		retryIn = 10 * time.Millisecond
	}
	return allowed, retryIn
}

func (rl *distributedLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":         "distributed",
		"enabled":      rl.config.Enabled,
		"key":          rl.key,
		"max_requests": rl.config.MaxRequests,
		"window":       rl.config.Window.String(),
	}
}
