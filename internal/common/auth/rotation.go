package auth

import (
	"context"

	"infolio/internal/common/logging"
	"infolio/internal/tokenstore"
)

// rotatingToken holds a refresh token that the provider may replace on every
// exchange. When a store is configured the stored token wins over the
// configured one and every rotation is saved. Callers hold the strategy lock.
type rotatingToken struct {
	value  string
	key    string
	loaded bool
	opts   *options
}

// lock takes the store's cross-process lock when it has one and forgets the
// cached token, so the exchange sends whatever another process saved last.
// The returned function releases the lock.
func (r *rotatingToken) lock(ctx context.Context) func() {
	locker, ok := r.opts.store.(tokenstore.Locker)
	if !ok {
		return func() {}
	}

	unlock, err := locker.Lock(ctx, r.key)
	if err != nil {
		r.opts.logger.Warn("Failed to lock refresh token, refreshing unguarded",
			logging.String("store_key", r.key),
			logging.Err(err))
		return func() {}
	}
	r.loaded = false
	return unlock
}

// current returns the refresh token to send, consulting the store once.
func (r *rotatingToken) current(ctx context.Context) string {
	if r.loaded || r.opts.store == nil {
		return r.value
	}
	r.loaded = true

	stored, found, err := r.opts.store.Load(ctx, r.key)
	if err != nil {
		r.opts.logger.Warn("Failed to load stored refresh token",
			logging.String("store_key", r.key),
			logging.Err(err))
		return r.value
	}
	if found && stored != "" {
		r.value = stored
	}
	return r.value
}

// rotate replaces the refresh token and persists it. Store failures are
// logged; the new token is kept in memory either way.
func (r *rotatingToken) rotate(ctx context.Context, token string) {
	if token == "" || token == r.value {
		return
	}
	r.value = token

	if r.opts.store == nil {
		return
	}
	if err := r.opts.store.Save(ctx, r.key, token); err != nil {
		r.opts.logger.Warn("Failed to persist rotated refresh token",
			logging.String("store_key", r.key),
			logging.Err(err))
	}
}

// storeKey derives a key when none is configured
func storeKey(configured, tokenURL, clientID string) string {
	if configured != "" {
		return configured
	}
	if clientID == "" {
		return tokenURL
	}
	return tokenURL + "#" + clientID
}
