package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"infolio/internal/common/config"
	"infolio/internal/common/logging"
)

// BearerTimeout bounds a client-credentials token request
const BearerTimeout = 5 * time.Second

// BearerConfig describes a client-credentials token endpoint
type BearerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// BearerTokenStrategy exchanges a client id and secret for an access token
// and writes "Authorization: Bearer <token>".
type BearerTokenStrategy struct {
	credentials clientcredentials.Config
	opts        options

	mu        sync.Mutex
	expiresAt time.Time
}

// NewBearerTokenStrategy creates a client-credentials strategy.
// Credentials are sent in the form body, not as basic auth.
func NewBearerTokenStrategy(cfg BearerConfig, opts ...Option) *BearerTokenStrategy {
	return &BearerTokenStrategy{
		credentials: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		opts: newOptions(BearerTimeout, opts),
	}
}

// Type returns the authentication type identifier.
func (s *BearerTokenStrategy) Type() string {
	return config.AuthTypeBearer
}

// Refresh requests a new token. Every call performs a fresh exchange.
func (s *BearerTokenStrategy) Refresh(ctx context.Context, client HeaderWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.httpClient)

	token, err := s.credentials.Token(ctx)
	if err != nil {
		s.opts.logger.Warn("Client credentials exchange failed",
			logging.String("token_url", s.credentials.TokenURL),
			logging.Err(err))
		return false
	}
	if token.AccessToken == "" {
		s.opts.logger.Warn("Client credentials response has no access token",
			logging.String("token_url", s.credentials.TokenURL))
		return false
	}

	s.expiresAt = token.Expiry
	client.SetHeader("Authorization", "Bearer "+token.AccessToken)

	s.opts.logger.Debug("Bearer token refreshed",
		logging.String("token_url", s.credentials.TokenURL))
	return true
}

// ExpiresAt returns the expiry reported by the token endpoint.
func (s *BearerTokenStrategy) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}
