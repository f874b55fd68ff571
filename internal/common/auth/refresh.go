package auth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"infolio/internal/common/config"
	"infolio/internal/common/logging"
)

// RefreshTimeout bounds a generic refresh-token exchange
const RefreshTimeout = 10 * time.Second

// DefaultTokenPrefix is written before the access token
const DefaultTokenPrefix = "Bearer "

// RefreshTokenConfig describes a refresh-token grant with provider-specific
// field names. Empty fields take the documented defaults.
type RefreshTokenConfig struct {
	TokenURL     string
	RefreshToken string
	// ClientID and ClientSecret are sent only when set.
	ClientID     string
	ClientSecret string
	// RefreshField names the refresh token in the request. Defaults to "refresh_token".
	RefreshField string
	// AccessTokenField names the access token in the response. Defaults to "access_token".
	AccessTokenField string
	// NewRefreshField names a rotated refresh token in the response.
	// Rotation is disabled when empty.
	NewRefreshField string
	// Headers are sent with the token request
	Headers map[string]string
	// GrantType defaults to "refresh_token"
	GrantType string
	// TokenPrefix defaults to DefaultTokenPrefix unless RawToken is set
	TokenPrefix string
	// RawToken writes the access token without any prefix
	RawToken bool
	// AuthHeaderField is the header written. Defaults to "Authorization".
	AuthHeaderField string
	// StoreKey names the refresh token in the token store
	StoreKey string
}

// RefreshTokenStrategy is the configurable refresh-token exchange for
// providers that deviate from the standard field names.
type RefreshTokenStrategy struct {
	config  RefreshTokenConfig
	opts    options
	refresh rotatingToken

	mu sync.Mutex
}

// NewRefreshTokenStrategy creates a generic refresh-token strategy
func NewRefreshTokenStrategy(cfg RefreshTokenConfig, opts ...Option) *RefreshTokenStrategy {
	if cfg.RefreshField == "" {
		cfg.RefreshField = "refresh_token"
	}
	if cfg.AccessTokenField == "" {
		cfg.AccessTokenField = "access_token"
	}
	if cfg.GrantType == "" {
		cfg.GrantType = "refresh_token"
	}
	if cfg.AuthHeaderField == "" {
		cfg.AuthHeaderField = "Authorization"
	}
	if cfg.RawToken {
		cfg.TokenPrefix = ""
	} else if cfg.TokenPrefix == "" {
		cfg.TokenPrefix = DefaultTokenPrefix
	}

	s := &RefreshTokenStrategy{
		config: cfg,
		opts:   newOptions(RefreshTimeout, opts),
	}
	s.refresh = rotatingToken{
		value: cfg.RefreshToken,
		key:   storeKey(cfg.StoreKey, cfg.TokenURL, cfg.ClientID),
		opts:  &s.opts,
	}
	return s
}

// Type returns the authentication type identifier.
func (s *RefreshTokenStrategy) Type() string {
	return config.AuthTypeRefreshToken
}

// Refresh exchanges the current refresh token and writes
// "<AuthHeaderField>: <TokenPrefix><token>".
func (s *RefreshTokenStrategy) Refresh(ctx context.Context, client HeaderWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.refresh.lock(ctx)
	defer release()

	form := url.Values{}
	form.Set(s.config.RefreshField, s.refresh.current(ctx))
	form.Set("grant_type", s.config.GrantType)
	if s.config.ClientID != "" {
		form.Set("client_id", s.config.ClientID)
	}
	if s.config.ClientSecret != "" {
		form.Set("client_secret", s.config.ClientSecret)
	}

	req := tokenRequest{url: s.config.TokenURL, form: form, headers: s.config.Headers}
	data, err := req.post(ctx, s.opts.httpClient)
	if err != nil {
		s.opts.logger.Error("Refresh token exchange failed", err,
			logging.String("token_url", s.config.TokenURL))
		return false
	}

	accessToken, ok := stringField(data, s.config.AccessTokenField)
	if !ok {
		s.opts.logger.Error("Refresh token exchange failed", missingField(s.config.AccessTokenField),
			logging.String("token_url", s.config.TokenURL))
		return false
	}

	client.SetHeader(s.config.AuthHeaderField, s.config.TokenPrefix+accessToken)

	if s.config.NewRefreshField != "" {
		if rotated, ok := stringField(data, s.config.NewRefreshField); ok {
			s.refresh.rotate(ctx, rotated)
		}
	}
	return true
}

// RefreshToken returns the refresh token the next exchange will send.
func (s *RefreshTokenStrategy) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh.value
}
