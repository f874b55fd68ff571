package tokenstore

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps tokens in process memory. Entries never expire.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	v, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}
	token, ok := v.(string)
	return token, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key, token string) error {
	m.cache.Set(key, token, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
