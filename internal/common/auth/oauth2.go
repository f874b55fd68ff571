package auth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"infolio/internal/common/config"
	"infolio/internal/common/logging"
)

// OAuth2Timeout bounds a refresh-token exchange
const OAuth2Timeout = 5 * time.Second

// OAuth2Config describes a standard refresh-token grant
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	// Scope is sent only when set; some providers require it on refresh.
	Scope string
	// StoreKey names the refresh token in the token store.
	// Defaults to the token URL and client id.
	StoreKey string
}

// OAuth2Strategy exchanges a refresh token for an access token and adopts
// the rotated refresh token when the provider returns one.
type OAuth2Strategy struct {
	config  OAuth2Config
	opts    options
	refresh rotatingToken

	mu        sync.Mutex
	expiresAt time.Time
}

// NewOAuth2Strategy creates a refresh-token strategy
func NewOAuth2Strategy(cfg OAuth2Config, opts ...Option) *OAuth2Strategy {
	s := &OAuth2Strategy{
		config: cfg,
		opts:   newOptions(OAuth2Timeout, opts),
	}
	s.refresh = rotatingToken{
		value: cfg.RefreshToken,
		key:   storeKey(cfg.StoreKey, cfg.TokenURL, cfg.ClientID),
		opts:  &s.opts,
	}
	return s
}

// Type returns the authentication type identifier.
func (s *OAuth2Strategy) Type() string {
	return config.AuthTypeOAuth2
}

// Refresh exchanges the current refresh token.
func (s *OAuth2Strategy) Refresh(ctx context.Context, client HeaderWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.refresh.lock(ctx)
	defer release()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.refresh.current(ctx))
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	if s.config.Scope != "" {
		form.Set("scope", s.config.Scope)
	}

	data, err := tokenRequest{url: s.config.TokenURL, form: form}.post(ctx, s.opts.httpClient)
	if err != nil {
		s.opts.logger.Warn("OAuth2 token refresh failed",
			logging.String("token_url", s.config.TokenURL),
			logging.Err(err))
		return false
	}

	accessToken, ok := stringField(data, "access_token")
	if !ok {
		s.opts.logger.Warn("OAuth2 token refresh failed",
			logging.String("token_url", s.config.TokenURL),
			logging.Err(missingField("access_token")))
		return false
	}

	client.SetHeader("Authorization", "Bearer "+accessToken)

	if rotated, ok := stringField(data, "refresh_token"); ok {
		s.refresh.rotate(ctx, rotated)
	}

	s.expiresAt = time.Time{}
	if lifetime, ok := secondsField(data, "expires_in"); ok {
		s.expiresAt = s.opts.now().Add(lifetime)
	}
	return true
}

// RefreshToken returns the refresh token the next exchange will send.
func (s *OAuth2Strategy) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh.value
}

// ExpiresAt returns the access token expiry, zero when the provider sent none.
func (s *OAuth2Strategy) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}
