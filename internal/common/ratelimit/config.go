// Package ratelimit paces outgoing requests on the client side so that a
// provider's published quota is respected before the server has to answer 429.
package ratelimit

import (
	"time"

	"infolio/internal/common/errors"
)

// Config represents rate limiter configuration
type Config struct {
	Enabled bool `json:"enabled"`
	// Requests allowed per Window
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
	// BurstSize defaults to 1 so requests are spread evenly across the window
	BurstSize int `json:"burst_size"`
}

// PerMinute returns an enabled config allowing n requests per minute.
// n <= 0 yields a disabled config.
func PerMinute(n int) Config {
	if n <= 0 {
		return Config{}
	}
	return Config{Enabled: true, MaxRequests: n, Window: time.Minute}
}

// Validate validates the rate limiter configuration and fills defaults
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxRequests <= 0 {
		return errors.ConfigError("rate limit max_requests must be positive")
	}

	if c.Window <= 0 {
		c.Window = time.Second
	}

	if c.BurstSize <= 0 {
		c.BurstSize = 1
	}

	return nil
}

// Interval is the steady-state spacing between two requests.
func (c Config) Interval() time.Duration {
	if !c.Enabled || c.MaxRequests <= 0 {
		return 0
	}
	return c.Window / time.Duration(c.MaxRequests)
}
