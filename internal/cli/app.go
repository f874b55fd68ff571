package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"infolio/internal/circuitbreaker"
	"infolio/internal/common/auth"
	commonconfig "infolio/internal/common/config"
	commonhttp "infolio/internal/common/http"
	"infolio/internal/common/logging"
	"infolio/internal/common/ratelimit"
	"infolio/internal/config"
	"infolio/internal/crypto"
	"infolio/internal/locks"
	"infolio/internal/redis"
	"infolio/internal/tokenstore"
)

// app holds the process-wide dependencies shared by every command
type app struct {
	cfg    *config.Config
	logger logging.Logger
	redis  *redis.Client
	store  tokenstore.Store
	auth   *auth.Registry

	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, logCloser, err := logging.NewFileLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		closers: []io.Closer{logCloser},
	}

	if cfg.UsesRedis() {
		client, err := redis.NewClient(ctx, redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, client)
	}

	if err := a.openTokenStore(); err != nil {
		a.Close()
		return nil, err
	}

	a.auth = auth.NewRegistry(
		auth.WithLogger(logger),
		auth.WithTokenStore(a.store),
	)
	return a, nil
}

func (a *app) openTokenStore() error {
	if a.cfg.TokenStore != "redis" {
		a.store = tokenstore.NewMemoryStore()
		return nil
	}

	lockManager, err := locks.NewManager(a.redis, locks.Config{}, a.logger)
	if err != nil {
		return err
	}

	opts := []tokenstore.RedisOption{tokenstore.WithLocker(lockManager)}
	if a.cfg.TokenEncryptionKey != "" {
		encryptor, err := crypto.NewEncryptor(a.cfg.TokenEncryptionKey)
		if err != nil {
			return err
		}
		opts = append(opts, tokenstore.WithCipher(encryptor))
	} else {
		a.logger.Warn("TOKEN_ENCRYPTION_KEY not set, refresh tokens are stored in plain text")
	}

	a.store = tokenstore.NewRedisStore(a.redis, opts...)
	return nil
}

// sharedLimiter returns a Redis-backed limiter for name when the quota is
// shared between processes, nil otherwise.
func (a *app) sharedLimiter(name string, perMinute int) (ratelimit.Limiter, error) {
	if a.cfg.RateLimitStore != "redis" || perMinute <= 0 {
		return nil, nil
	}
	return ratelimit.NewDistributedLimiter(ratelimit.PerMinute(perMinute), a.redis, name)
}

// connConfig applies the HTTP overrides from the environment
func (a *app) connConfig() commonconfig.BaseConnConfig {
	return commonconfig.BaseConnConfig{
		Timeout:  a.cfg.HTTPTimeout,
		RetryMax: a.cfg.HTTPMaxRetries,
	}
}

// executorOptions returns the options every upstream client shares
func (a *app) executorOptions(name string) []commonhttp.Option {
	opts := []commonhttp.Option{commonhttp.WithLogger(a.logger)}
	if a.cfg.CircuitBreakerEnabled {
		opts = append(opts, commonhttp.WithCircuitBreaker(circuitbreaker.NewGoBreaker(name, circuitbreaker.Config{
			MaxFailures:           a.cfg.CircuitBreakerMaxFailures,
			Timeout:               a.cfg.CircuitBreakerTimeout,
			MaxConcurrentRequests: 1,
		}, a.logger)))
	}
	return opts
}

// Close releases everything newApp opened, last opened first
func (a *app) Close() {
	logging.Sync(a.logger)
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePairs turns repeated key=value flags into a map
func parsePairs(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--%s expects key=value, got %q", flag, pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}
