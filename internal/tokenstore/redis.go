package tokenstore

import (
	"context"
	"fmt"
	"time"
)

// DefaultKeyPrefix namespaces token keys in a shared Redis
const DefaultKeyPrefix = "infolio:token:"

// KV is the Redis surface RedisStore needs; *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cipher seals tokens before they are written; *crypto.Encryptor satisfies it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// RedisStore keeps tokens in Redis under a key prefix.
type RedisStore struct {
	kv     KV
	cipher Cipher
	locker Locker
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithCipher encrypts tokens at rest
func WithCipher(c Cipher) RedisOption {
	return func(s *RedisStore) { s.cipher = c }
}

// WithLocker serializes refreshes of the same key across processes
func WithLocker(l Locker) RedisOption {
	return func(s *RedisStore) { s.locker = l }
}

// WithPrefix overrides DefaultKeyPrefix
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL expires stored tokens after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a Redis-backed store. Tokens are kept for 30 days by default.
func NewRedisStore(kv KV, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		kv:     kv,
		prefix: DefaultKeyPrefix,
		ttl:    30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, bool, error) {
	value, found, err := s.kv.Get(ctx, s.prefix+key)
	if err != nil {
		return "", false, fmt.Errorf("failed to load token %s: %w", key, err)
	}
	if !found {
		return "", false, nil
	}

	if s.cipher != nil {
		value, err = s.cipher.Decrypt(value)
		if err != nil {
			return "", false, fmt.Errorf("failed to decrypt token %s: %w", key, err)
		}
	}
	return value, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key, token string) error {
	value := token
	if s.cipher != nil {
		sealed, err := s.cipher.Encrypt(token)
		if err != nil {
			return fmt.Errorf("failed to encrypt token %s: %w", key, err)
		}
		value = sealed
	}

	if err := s.kv.Set(ctx, s.prefix+key, value, s.ttl); err != nil {
		return fmt.Errorf("failed to save token %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, s.prefix+key); err != nil {
		return fmt.Errorf("failed to delete token %s: %w", key, err)
	}
	return nil
}

// Lock takes the cross-process lock for key. Without a locker it returns at
// once and the strategy's own mutex is the only guard.
func (s *RedisStore) Lock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, s.prefix+key)
	if err != nil {
		return nil, fmt.Errorf("failed to lock token %s: %w", key, err)
	}
	return unlock, nil
}
