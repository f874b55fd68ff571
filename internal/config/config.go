// Package config loads the infolio application configuration from environment
// variables, optionally seeded from .env files.
//
// Environment Variables:
//
// Logging:
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path; empty logs to stderr
//
// HTTP:
//   - HTTP_TIMEOUT: Per-attempt timeout override, e.g. "10s" (default: provider specific)
//   - HTTP_MAX_RETRIES: Attempt bound per request (default: 5)
//   - CIRCUIT_BREAKER_ENABLED: Wrap provider calls in a circuit breaker (default: false)
//   - CIRCUIT_BREAKER_MAX_FAILURES: Consecutive failures before opening (default: 5)
//   - CIRCUIT_BREAKER_TIMEOUT: Time the breaker stays open (default: 30s)
//
// Providers:
//   - API__CURRENCY_BEACON__API_KEY: Currency Beacon API key
//   - API__CURRENCY_BEACON__BASE_URL: (default: https://api.currencybeacon.com/v1)
//   - API__ALPACA__API_KEY: Alpaca key id
//   - API__ALPACA__SECRET_KEY: Alpaca secret key
//   - API__ALPACA__BASE_URL: (default: https://data.alpaca.markets/v2)
//   - API__ALPACA__REQUESTS_PER_MINUTE: Client-side pacing, 0 disables (default: 200)
//   - RATE_LIMIT_STORE: "memory" paces each process alone, "redis" shares the
//     quota between processes (default: memory)
//
// Stores:
//   - TOKEN_STORE: "memory" or "redis" (default: memory)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - TOKEN_ENCRYPTION_KEY: Encrypts refresh tokens at rest in Redis (32 characters if provided)
//
// Example usage:
//
//	config.LoadDotEnv(".env")
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"infolio/internal/common/validation"
)

const (
	DefaultCurrencyBeaconURL = "https://api.currencybeacon.com/v1"
	DefaultAlpacaURL         = "https://data.alpaca.markets/v2"
)

// Config holds all configuration values for the infolio CLI.
type Config struct {
	LogLevel string
	LogFile  string

	// HTTPTimeout is zero when each provider should use its own default.
	HTTPTimeout    time.Duration
	HTTPMaxRetries int

	CircuitBreakerEnabled     bool
	CircuitBreakerMaxFailures int
	CircuitBreakerTimeout     time.Duration

	CurrencyBeaconAPIKey  string
	CurrencyBeaconBaseURL string

	AlpacaAPIKey            string
	AlpacaSecretKey         string
	AlpacaBaseURL           string
	AlpacaRequestsPerMinute int

	TokenStore         string
	RateLimitStore     string
	RedisAddress       string
	RedisPassword      string
	RedisDB            int
	RedisPoolSize      int
	TokenEncryptionKey string

	// parse problems found by Load, reported by Validate
	problems []string
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load creates a Config from environment variables, using defaults for unset
// values. Call Validate on the result before use.
func Load() *Config {
	c := &Config{}

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFile = getEnv("LOG_FILE", "")

	c.HTTPTimeout = c.getDurationEnv("HTTP_TIMEOUT", 0)
	c.HTTPMaxRetries = c.getIntEnv("HTTP_MAX_RETRIES", 5)

	c.CircuitBreakerEnabled = getBoolEnv("CIRCUIT_BREAKER_ENABLED", false)
	c.CircuitBreakerMaxFailures = c.getIntEnv("CIRCUIT_BREAKER_MAX_FAILURES", 5)
	c.CircuitBreakerTimeout = c.getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second)

	c.CurrencyBeaconAPIKey = getEnv("API__CURRENCY_BEACON__API_KEY", "")
	c.CurrencyBeaconBaseURL = getEnv("API__CURRENCY_BEACON__BASE_URL", DefaultCurrencyBeaconURL)

	c.AlpacaAPIKey = getEnv("API__ALPACA__API_KEY", "")
	c.AlpacaSecretKey = getEnv("API__ALPACA__SECRET_KEY", "")
	c.AlpacaBaseURL = getEnv("API__ALPACA__BASE_URL", DefaultAlpacaURL)
	c.AlpacaRequestsPerMinute = c.getIntEnv("API__ALPACA__REQUESTS_PER_MINUTE", 200)

	c.TokenStore = getEnv("TOKEN_STORE", "memory")
	c.RateLimitStore = getEnv("RATE_LIMIT_STORE", "memory")
	c.RedisAddress = getEnv("REDIS_ADDRESS", "localhost:6379")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.RedisPoolSize = c.getIntEnv("REDIS_POOL_SIZE", 10)
	c.TokenEncryptionKey = getEnv("TOKEN_ENCRYPTION_KEY", "")

	return c
}

// Validate reports every configuration problem in a single error.
// Provider credentials are checked by RequireCurrencyBeacon and RequireAlpaca
// since only the commands that use a provider need them.
func (c *Config) Validate() error {
	v := validation.NewValidator()

	for _, p := range c.problems {
		v.Validate(func() error { return fmt.Errorf("%s", p) })
	}

	v.RequireOneOf(strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "warning", "error"}, "LOG_LEVEL")
	if c.HTTPTimeout < 0 {
		v.Validate(func() error { return fmt.Errorf("HTTP_TIMEOUT must not be negative") })
	}
	v.Var(c.HTTPMaxRetries, "min=1,max=20", "HTTP_MAX_RETRIES")
	v.RequireURL(c.CurrencyBeaconBaseURL, "API__CURRENCY_BEACON__BASE_URL")
	v.RequireURL(c.AlpacaBaseURL, "API__ALPACA__BASE_URL")
	v.Var(c.AlpacaRequestsPerMinute, "min=0", "API__ALPACA__REQUESTS_PER_MINUTE")

	if c.CircuitBreakerEnabled {
		v.RequirePositive(c.CircuitBreakerMaxFailures, "CIRCUIT_BREAKER_MAX_FAILURES")
		if c.CircuitBreakerTimeout <= 0 {
			v.Validate(func() error { return fmt.Errorf("CIRCUIT_BREAKER_TIMEOUT must be positive") })
		}
	}

	v.RequireOneOf(c.TokenStore, []string{"memory", "redis"}, "TOKEN_STORE")
	v.RequireOneOf(c.RateLimitStore, []string{"memory", "redis"}, "RATE_LIMIT_STORE")
	if c.UsesRedis() {
		v.RequireString(c.RedisAddress, "REDIS_ADDRESS")
		v.Var(c.RedisDB, "min=0,max=15", "REDIS_DB")
		v.RequirePositive(c.RedisPoolSize, "REDIS_POOL_SIZE")
	}

	if c.TokenEncryptionKey != "" {
		v.Var(c.TokenEncryptionKey, "len=32", "TOKEN_ENCRYPTION_KEY")
	}

	return v.Error()
}

// RequireCurrencyBeacon checks the Currency Beacon credentials.
func (c *Config) RequireCurrencyBeacon() error {
	return validation.NewValidator().
		RequireString(c.CurrencyBeaconAPIKey, "API__CURRENCY_BEACON__API_KEY").
		Error()
}

// RequireAlpaca checks the Alpaca credentials.
func (c *Config) RequireAlpaca() error {
	return validation.NewValidator().
		RequireString(c.AlpacaAPIKey, "API__ALPACA__API_KEY").
		RequireString(c.AlpacaSecretKey, "API__ALPACA__SECRET_KEY").
		Error()
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool spellings; anything else yields defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be a valid duration (e.g., '10s'), got %q", key, value))
		return defaultValue
	}
	return parsed
}

// UsesRedis reports whether any store is configured to live in Redis
func (c *Config) UsesRedis() bool {
	return c.TokenStore == "redis" || c.RateLimitStore == "redis"
}
