// Package tokenstore persists the long-lived credentials that refresh-token
// strategies rotate, so a rotated refresh token survives a process restart.
//
// Two backends are provided:
//   - MemoryStore keeps tokens for the life of the process (go-cache)
//   - RedisStore shares tokens across processes, optionally encrypted at rest
package tokenstore

import "context"

// Store holds one opaque token string per key.
type Store interface {
	// Load returns the token at key; found is false when none is stored.
	Load(ctx context.Context, key string) (token string, found bool, err error)
	// Save replaces the token at key.
	Save(ctx context.Context, key, token string) error
	// Delete removes the token at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Locker is implemented by stores shared between processes. A refresh holds
// the lock for its key from reading the token until the rotated token is saved.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
