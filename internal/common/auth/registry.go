package auth

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"infolio/internal/common/config"
	"infolio/internal/common/errors"
	"infolio/internal/common/validation"
)

// Builder constructs a strategy from validated settings
type Builder func(auth config.AuthConfig, opts ...Option) (Strategy, error)

// Registry maps authentication types to strategy builders.
//
// The registry is pre-populated with the built-in strategies:
//   - "apikey": APIKeyStrategy
//   - "bearer": BearerTokenStrategy
//   - "oauth2": OAuth2Strategy
//   - "password": UsernamePasswordStrategy
//   - "refresh_token": RefreshTokenStrategy
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
	opts     []Option
}

// NewRegistry creates a registry whose strategies share opts
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		builders: map[string]Builder{
			config.AuthTypeAPIKey:       buildAPIKey,
			config.AuthTypeBearer:       buildBearer,
			config.AuthTypeOAuth2:       buildOAuth2,
			config.AuthTypePassword:     buildPassword,
			config.AuthTypeRefreshToken: buildRefreshToken,
		},
		opts: opts,
	}
}

// Register adds or replaces the builder for authType.
func (r *Registry) Register(authType string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[authType] = builder
}

// Build validates auth and constructs its strategy. The "none" type and an
// empty type build no strategy and return nil.
func (r *Registry) Build(auth config.AuthConfig) (Strategy, error) {
	if !auth.IsEnabled() {
		return nil, nil
	}

	r.mu.RLock()
	builder, exists := r.builders[auth.Type]
	r.mu.RUnlock()
	if !exists {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported auth type: %s", auth.Type))
	}

	if _, builtin := builtinTypes[auth.Type]; builtin {
		v := validation.NewValidator()
		config.ValidateAuthConfig(auth, v)
		if err := v.Error(); err != nil {
			return nil, err
		}
	}

	return builder(auth, r.opts...)
}

// SupportedTypes returns the registered types in sorted order.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var builtinTypes = map[string]struct{}{
	config.AuthTypeAPIKey:       {},
	config.AuthTypeBearer:       {},
	config.AuthTypeOAuth2:       {},
	config.AuthTypePassword:     {},
	config.AuthTypeRefreshToken: {},
}

func buildAPIKey(auth config.AuthConfig, _ ...Option) (Strategy, error) {
	return NewAPIKeyStrategy(APIKeyConfig{
		KeyName: auth.Settings["key_name"],
		APIKey:  auth.Settings["api_key"],
		Prefix:  auth.Settings["prefix"],
	}), nil
}

func buildBearer(auth config.AuthConfig, opts ...Option) (Strategy, error) {
	return NewBearerTokenStrategy(BearerConfig{
		TokenURL:     auth.Settings["token_url"],
		ClientID:     auth.Settings["client_id"],
		ClientSecret: auth.Settings["client_secret"],
		Scopes:       strings.Fields(auth.Get("scope", "")),
	}, opts...), nil
}

func buildOAuth2(auth config.AuthConfig, opts ...Option) (Strategy, error) {
	return NewOAuth2Strategy(OAuth2Config{
		TokenURL:     auth.Settings["token_url"],
		ClientID:     auth.Settings["client_id"],
		ClientSecret: auth.Settings["client_secret"],
		RefreshToken: auth.Settings["refresh_token"],
		Scope:        auth.Get("scope", ""),
		StoreKey:     auth.Get("store_key", ""),
	}, opts...), nil
}

func buildPassword(auth config.AuthConfig, opts ...Option) (Strategy, error) {
	return NewUsernamePasswordStrategy(PasswordConfig{
		LoginURL:       auth.Settings["login_url"],
		Username:       auth.Settings["username"],
		Password:       auth.Settings["password"],
		ExtraHeaders:   auth.ExtraHeaders(),
		TokenField:     auth.Get("token_field", ""),
		ExpiresInField: auth.Get("expires_in_field", ""),
	}, opts...), nil
}

func buildRefreshToken(auth config.AuthConfig, opts ...Option) (Strategy, error) {
	cfg := RefreshTokenConfig{
		TokenURL:         auth.Settings["token_url"],
		RefreshToken:     auth.Settings["refresh_token"],
		ClientID:         auth.Get("client_id", ""),
		ClientSecret:     auth.Get("client_secret", ""),
		RefreshField:     auth.Get("refresh_field", ""),
		AccessTokenField: auth.Get("access_token_field", ""),
		NewRefreshField:  auth.Get("new_refresh_field", ""),
		Headers:          auth.ExtraHeaders(),
		GrantType:        auth.Get("grant_type", ""),
		AuthHeaderField:  auth.Get("auth_header_field", ""),
		StoreKey:         auth.Get("store_key", ""),
	}

	// an explicitly empty prefix means the raw token
	if prefix, set := auth.Settings["token_prefix"]; set {
		cfg.TokenPrefix = prefix
		cfg.RawToken = prefix == ""
	}

	return NewRefreshTokenStrategy(cfg, opts...), nil
}
