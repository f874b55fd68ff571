// Package redis wraps go-redis with the small surface infolio needs: token
// storage, the Redlock pool and shared rate-limit windows.
package redis

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"infolio/internal/common/logging"
	"infolio/internal/common/utils"
)

type Client struct {
	rdb    *redis.Client
	config Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	// ConnectAttempts bounds the startup ping, default 3
	ConnectAttempts int `json:"connect_attempts"`
}

func (c *Config) setDefaults() {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 3
	}
}

// NewClient connects and pings Redis, retrying the ping with exponential backoff.
func NewClient(ctx context.Context, config Config, logger logging.Logger) (*Client, error) {
	config.setDefaults()
	logger = logging.OrNop(logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	retry := utils.RetryConfig{
		MaxAttempts: config.ConnectAttempts,
		Delay:       utils.ExponentialDelay(200*time.Millisecond, 2*time.Second, 2.0, 0.1),
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Warn("Redis ping failed, retrying",
				logging.String("address", config.Address),
				logging.Int("attempt", attempt),
				logging.Duration("wait", wait),
				logging.Err(err),
			)
		},
	}

	err := utils.Retry(ctx, retry, func(int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Address, err)
	}

	return &Client{rdb: rdb, config: config}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns the value at key; found is false when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	value, err = c.rdb.Get(ctx, key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value at key. A zero expiration keeps the key forever.
func (c *Client) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// GetGoRedisClient exposes the underlying client for libraries that take a
// go-redis handle directly.
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}

// CheckRateLimit counts one hit in the fixed window at key and reports
// whether it stays within limit. retryIn is the time left in the window.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryIn time.Duration, err error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit: %w", err)
	}

	retryIn = ttl.Val()
	if retryIn < 0 {
		// first hit of the window
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to start rate limit window: %w", err)
		}
		retryIn = window
	}
	return incr.Val() <= int64(limit), retryIn, nil
}
