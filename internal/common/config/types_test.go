package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"infolio/internal/common/validation"
)

func TestBaseConnConfig_SetConnectionDefaults(t *testing.T) {
	tests := []struct {
		name           string
		initial        BaseConnConfig
		defaultTimeout time.Duration
		expected       BaseConnConfig
	}{
		{
			name:           "sets defaults when values are zero",
			initial:        BaseConnConfig{},
			defaultTimeout: 30 * time.Second,
			expected:       BaseConnConfig{Timeout: 30 * time.Second, RetryMax: 5},
		},
		{
			name:           "preserves existing values",
			initial:        BaseConnConfig{Timeout: 10 * time.Second, RetryMax: 2},
			defaultTimeout: 30 * time.Second,
			expected:       BaseConnConfig{Timeout: 10 * time.Second, RetryMax: 2},
		},
		{
			name:           "uses standard default when defaultTimeout is zero",
			initial:        BaseConnConfig{},
			defaultTimeout: 0,
			expected:       BaseConnConfig{Timeout: 5 * time.Second, RetryMax: 5},
		},
		{
			name:           "replaces negative values",
			initial:        BaseConnConfig{Timeout: -time.Second, RetryMax: -1},
			defaultTimeout: 10 * time.Second,
			expected:       BaseConnConfig{Timeout: 10 * time.Second, RetryMax: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.initial
			config.SetConnectionDefaults(tt.defaultTimeout)
			assert.Equal(t, tt.expected, config)
		})
	}
}

func TestAuthConfig_Helpers(t *testing.T) {
	auth := AuthConfig{
		Type: AuthTypePassword,
		Settings: map[string]string{
			"token_field":     "jwt",
			"expires_in_field": " ",
			"header.X-Tenant": "acme",
			"header.":         "ignored",
		},
	}

	assert.True(t, auth.IsEnabled())
	assert.Equal(t, "jwt", auth.Get("token_field", "access_token"))
	assert.Equal(t, "expires_in", auth.Get("expires_in_field", "expires_in"))
	assert.Equal(t, "x", auth.Get("missing", "x"))
	assert.Equal(t, map[string]string{"X-Tenant": "acme"}, auth.ExtraHeaders())

	assert.False(t, NewAuthConfig().IsEnabled())
	assert.False(t, AuthConfig{}.IsEnabled())
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name       string
		auth       AuthConfig
		wantErr    bool
		errContain string
	}{
		{
			name: "none",
			auth: NewAuthConfig(),
		},
		{
			name: "empty type is ignored",
			auth: AuthConfig{},
		},
		{
			name:       "unknown type",
			auth:       AuthConfig{Type: "hmac"},
			wantErr:    true,
			errContain: "authentication.type must be one of",
		},
		{
			name: "valid apikey",
			auth: AuthConfig{Type: AuthTypeAPIKey, Settings: map[string]string{"key_name": "Authorization", "api_key": "k"}},
		},
		{
			name:       "apikey missing key",
			auth:       AuthConfig{Type: AuthTypeAPIKey, Settings: map[string]string{"key_name": "Authorization"}},
			wantErr:    true,
			errContain: "authentication.settings.api_key is required",
		},
		{
			name: "valid bearer",
			auth: AuthConfig{Type: AuthTypeBearer, Settings: map[string]string{
				"token_url": "https://auth.example.com/token", "client_id": "id", "client_secret": "secret",
			}},
		},
		{
			name: "bearer with relative token url",
			auth: AuthConfig{Type: AuthTypeBearer, Settings: map[string]string{
				"token_url": "/token", "client_id": "id", "client_secret": "secret",
			}},
			wantErr:    true,
			errContain: "token_url must be a complete http(s) URL",
		},
		{
			name:       "oauth2 missing refresh token",
			auth:       AuthConfig{Type: AuthTypeOAuth2, Settings: map[string]string{"token_url": "https://a.b/t", "client_id": "id", "client_secret": "s"}},
			wantErr:    true,
			errContain: "refresh_token is required",
		},
		{
			name: "valid password",
			auth: AuthConfig{Type: AuthTypePassword, Settings: map[string]string{
				"login_url": "https://a.b/login", "username": "u", "password": "p", "header.X-Api-Version": "2",
			}},
		},
		{
			name: "password with bad extra header",
			auth: AuthConfig{Type: AuthTypePassword, Settings: map[string]string{
				"login_url": "https://a.b/login", "username": "u", "password": "p", "header.Bad Name": "x",
			}},
			wantErr:    true,
			errContain: "header.Bad Name is not a valid header name",
		},
		{
			name: "valid refresh_token",
			auth: AuthConfig{Type: AuthTypeRefreshToken, Settings: map[string]string{
				"token_url": "https://a.b/t", "refresh_token": "r",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validation.NewValidator()
			ValidateAuthConfig(tt.auth, v)

			err := v.Error()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errContain)
			}
		})
	}
}

func TestValidateBaseConn(t *testing.T) {
	v := validation.NewValidator()
	ValidateBaseConn(BaseConnConfig{Timeout: time.Second, RetryMax: 1}, v)
	assert.False(t, v.HasErrors())

	ValidateBaseConn(BaseConnConfig{}, v)
	msgs := strings.Join(v.Errors(), "; ")
	assert.Contains(t, msgs, "timeout must be positive")
	assert.Contains(t, msgs, "retry_max must be positive")
}
