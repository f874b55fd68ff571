// Package locks provides cross-process mutual exclusion over Redis using the
// Redlock implementation in go-redsync/redsync/v4.
//
// The token store uses it to serialize refresh-token rotation: a provider
// that invalidates the old refresh token on every exchange must never see two
// processes exchange the same token.
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"infolio/internal/common/errors"
	"infolio/internal/common/logging"
	"infolio/internal/redis"
)

// Config tunes lock acquisition
type Config struct {
	// Expiry is how long a lock survives without renewal, default 30s
	Expiry time.Duration
	// Tries bounds acquisition attempts, default 50
	Tries int
	// RetryDelay is the wait between attempts, default 100ms
	RetryDelay time.Duration
	// Prefix namespaces lock keys, default "infolio:lock:"
	Prefix string
}

func (c *Config) setDefaults() {
	if c.Expiry <= 0 {
		c.Expiry = 30 * time.Second
	}
	if c.Tries <= 0 {
		c.Tries = 50
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.Prefix == "" {
		c.Prefix = "infolio:lock:"
	}
}

// Manager hands out Redlock mutexes
type Manager struct {
	rs     *redsync.Redsync
	config Config
	logger logging.Logger
}

// NewManager creates a lock manager on an open Redis client
func NewManager(client *redis.Client, config Config, logger logging.Logger) (*Manager, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required for distributed locks")
	}
	config.setDefaults()

	return &Manager{
		rs:     redsync.New(goredis.NewPool(client.GetGoRedisClient())),
		config: config,
		logger: logging.OrNop(logger),
	}, nil
}

// Lock is a held mutex. It is renewed in the background at a third of the
// expiry until Release.
type Lock struct {
	key    string
	mutex  *redsync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger logging.Logger
}

// Acquire blocks until key is locked, the attempts run out, or ctx ends.
func (m *Manager) Acquire(ctx context.Context, key string) (*Lock, error) {
	mutex := m.rs.NewMutex(m.config.Prefix+key,
		redsync.WithExpiry(m.config.Expiry),
		redsync.WithTries(m.config.Tries),
		redsync.WithRetryDelay(m.config.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError(fmt.Sprintf("failed to acquire lock %s", key), err)
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	lock := &Lock{
		key:    key,
		mutex:  mutex,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: m.logger,
	}
	go lock.renew(renewCtx, m.config.Expiry/3)

	return lock, nil
}

// Lock acquires key and returns its release function. A failed release is
// logged; the lock then lapses at its expiry.
func (m *Manager) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := m.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			m.logger.Warn("Failed to release lock",
				logging.String("key", key),
				logging.Err(err))
		}
	}, nil
}

func (l *Lock) renew(ctx context.Context, interval time.Duration) {
	defer close(l.done)
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok, err := l.mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				l.logger.Warn("Lost lock while renewing",
					logging.String("key", l.key),
					logging.Err(err))
				return
			}
		}
	}
}

// Key returns the key the lock was acquired for, without the prefix
func (l *Lock) Key() string {
	return l.key
}

// Release stops renewal and unlocks in Redis. Releasing twice is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.cancel()
		<-l.done

		var ok bool
		ok, err = l.mutex.UnlockContext(ctx)
		if err == nil && !ok {
			err = fmt.Errorf("lock %s was no longer held", l.key)
		}
	})
	return err
}
