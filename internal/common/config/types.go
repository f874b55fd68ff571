// Package config provides the configuration types shared by the request
// executor, the authentication strategies and the provider clients.
//
// Example usage:
//
//	// In a provider config
//	type Config struct {
//		config.BaseConnConfig
//		BaseURL string
//		Auth    config.AuthConfig
//	}
package config

import (
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultRetryMax is the attempt bound of one Execute call, including the first attempt.
	DefaultRetryMax = 5
)

// Supported authentication types.
const (
	AuthTypeNone         = "none"
	AuthTypeAPIKey       = "apikey"
	AuthTypeBearer       = "bearer"
	AuthTypeOAuth2       = "oauth2"
	AuthTypePassword     = "password"
	AuthTypeRefreshToken = "refresh_token"
)

// AuthTypes lists every value accepted in AuthConfig.Type.
var AuthTypes = []string{
	AuthTypeNone,
	AuthTypeAPIKey,
	AuthTypeBearer,
	AuthTypeOAuth2,
	AuthTypePassword,
	AuthTypeRefreshToken,
}

// BaseConnConfig provides the connection settings every client carries.
type BaseConnConfig struct {
	// Timeout is the per-attempt request timeout
	Timeout time.Duration `json:"timeout"`
	// RetryMax is the maximum number of attempts for one request
	RetryMax int `json:"retry_max"`
}

// SetConnectionDefaults fills unset fields.
//
// Default values:
//   - Timeout: 5 seconds (or custom default if provided)
//   - RetryMax: 5 attempts
func (c *BaseConnConfig) SetConnectionDefaults(defaultTimeout time.Duration) {
	if defaultTimeout == 0 {
		defaultTimeout = DefaultTimeout
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.RetryMax <= 0 {
		c.RetryMax = DefaultRetryMax
	}
}

// AuthConfig selects and parameterizes an authentication strategy.
//
// Settings per type:
//
//	apikey:        key_name, api_key, prefix
//	bearer:        token_url, client_id, client_secret, scope
//	oauth2:        token_url, client_id, client_secret, refresh_token, scope, store_key
//	password:      login_url, username, password, token_field, expires_in_field
//	refresh_token: token_url, refresh_token, client_id, client_secret, refresh_field,
//	               access_token_field, new_refresh_field, grant_type, token_prefix,
//	               auth_header_field, store_key
//
// Keys of the form "header.<Name>" add extra headers to the token request of
// the password and refresh_token types.
type AuthConfig struct {
	// Type specifies the authentication method
	Type string `json:"type"`
	// Settings contains auth-specific configuration key-value pairs
	Settings map[string]string `json:"settings"`
}

// NewAuthConfig creates a new AuthConfig with default "none" authentication.
func NewAuthConfig() AuthConfig {
	return AuthConfig{
		Type:     AuthTypeNone,
		Settings: make(map[string]string),
	}
}

// IsEnabled returns true if a strategy should be built.
func (a AuthConfig) IsEnabled() bool {
	return a.Type != "" && a.Type != AuthTypeNone
}

// Get returns a setting or def when it is missing or blank.
func (a AuthConfig) Get(key, def string) string {
	if v, ok := a.Settings[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// ExtraHeaders collects the "header.<Name>" settings.
func (a AuthConfig) ExtraHeaders() map[string]string {
	headers := make(map[string]string)
	for k, v := range a.Settings {
		if name, ok := strings.CutPrefix(k, "header."); ok && name != "" {
			headers[name] = v
		}
	}
	return headers
}
