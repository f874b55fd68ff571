package auth

import (
	"context"

	"infolio/internal/common/config"
)

// APIKeyConfig describes a static key header
type APIKeyConfig struct {
	// KeyName is the header the key is written to
	KeyName string
	// APIKey is the key value
	APIKey string
	// Prefix is prepended to the key, e.g. "Bearer "
	Prefix string
}

// APIKeyStrategy writes a static key header. Refresh always succeeds and is
// idempotent: repeated calls write the same value.
type APIKeyStrategy struct {
	config APIKeyConfig
}

// NewAPIKeyStrategy creates an API key strategy
func NewAPIKeyStrategy(cfg APIKeyConfig) *APIKeyStrategy {
	return &APIKeyStrategy{config: cfg}
}

// Type returns the authentication type identifier.
func (s *APIKeyStrategy) Type() string {
	return config.AuthTypeAPIKey
}

// Refresh writes the key header.
func (s *APIKeyStrategy) Refresh(_ context.Context, client HeaderWriter) bool {
	client.SetHeader(s.config.KeyName, s.config.Prefix+s.config.APIKey)
	return true
}
