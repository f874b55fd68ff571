package auth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"infolio/internal/common/config"
	"infolio/internal/common/logging"
)

const (
	// PasswordTimeout bounds a login request
	PasswordTimeout = 10 * time.Second
	// DefaultTokenLifetime applies when the login response carries no lifetime
	DefaultTokenLifetime = time.Hour
	// ExpirySkew is subtracted from the reported lifetime
	ExpirySkew = 30 * time.Second
)

// PasswordConfig describes a basic-auth login endpoint
type PasswordConfig struct {
	LoginURL string
	Username string
	Password string
	// ExtraHeaders are sent with the login request
	ExtraHeaders map[string]string
	// TokenField names the token in the response. Defaults to "access_token".
	TokenField string
	// ExpiresInField names the lifetime in seconds. Defaults to "expires_in".
	ExpiresInField string
}

// UsernamePasswordStrategy logs in with HTTP basic auth and tracks when the
// returned token expires.
type UsernamePasswordStrategy struct {
	config PasswordConfig
	opts   options

	mu        sync.Mutex
	expiresAt time.Time
}

// NewUsernamePasswordStrategy creates a login strategy
func NewUsernamePasswordStrategy(cfg PasswordConfig, opts ...Option) *UsernamePasswordStrategy {
	if cfg.TokenField == "" {
		cfg.TokenField = "access_token"
	}
	if cfg.ExpiresInField == "" {
		cfg.ExpiresInField = "expires_in"
	}

	return &UsernamePasswordStrategy{
		config: cfg,
		opts:   newOptions(PasswordTimeout, opts),
	}
}

// Type returns the authentication type identifier.
func (s *UsernamePasswordStrategy) Type() string {
	return config.AuthTypePassword
}

// Refresh logs in and writes "Authorization: Bearer <token>".
//
// The expiry is now + lifetime - 30s. When the response has no lifetime
// field, the exp claim of a JWT token is used, then one hour.
func (s *UsernamePasswordStrategy) Refresh(ctx context.Context, client HeaderWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req := tokenRequest{
		url:      s.config.LoginURL,
		form:     form,
		headers:  s.config.ExtraHeaders,
		username: s.config.Username,
		password: s.config.Password,
		basic:    true,
	}

	data, err := req.post(ctx, s.opts.httpClient)
	if err != nil {
		s.opts.logger.Warn("Login failed",
			logging.String("login_url", s.config.LoginURL),
			logging.Err(err))
		return false
	}

	token, ok := stringField(data, s.config.TokenField)
	if !ok {
		s.opts.logger.Warn("Login failed",
			logging.String("login_url", s.config.LoginURL),
			logging.Err(missingField(s.config.TokenField)))
		return false
	}

	s.expiresAt = s.expiry(data, token)
	client.SetHeader("Authorization", "Bearer "+token)
	return true
}

func (s *UsernamePasswordStrategy) expiry(data map[string]interface{}, token string) time.Time {
	if lifetime, ok := secondsField(data, s.config.ExpiresInField); ok {
		return s.opts.now().Add(lifetime - ExpirySkew)
	}
	if exp, ok := jwtExpiry(token); ok {
		return exp.Add(-ExpirySkew)
	}
	return s.opts.now().Add(DefaultTokenLifetime - ExpirySkew)
}

// ExpiresAt returns when the current token should be replaced, zero before
// the first successful login.
func (s *UsernamePasswordStrategy) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}
