// Package auth provides the credential refresh strategies the request
// executor delegates to when an upstream answers 401.
//
// A strategy owns its secret material (API key, client secret, refresh token)
// and interacts with the executor only by writing one header through
// HeaderWriter. Refresh reports success as a bool: network errors, non-2xx
// token responses and missing token fields are logged and collapse to false.
//
// Built-in strategies:
//   - APIKeyStrategy: static header, always succeeds
//   - BearerTokenStrategy: OAuth2 client-credentials grant
//   - OAuth2Strategy: refresh-token grant with refresh-token rotation
//   - UsernamePasswordStrategy: basic-auth login with an expiry
//   - RefreshTokenStrategy: refresh-token grant with configurable field names
//
// Example usage:
//
//	strategy := auth.NewAPIKeyStrategy(auth.APIKeyConfig{
//		KeyName: "Authorization",
//		APIKey:  key,
//		Prefix:  "Bearer ",
//	})
//	client := http.NewClient(cfg, http.WithAuth(strategy))
package auth

import (
	"context"
	"net/http"
	"time"

	"infolio/internal/common/logging"
	"infolio/internal/tokenstore"
)

// HeaderWriter is the executor surface a strategy may touch.
type HeaderWriter interface {
	SetHeader(name, value string)
}

// Strategy refreshes credentials and applies them to the client's default headers.
type Strategy interface {
	// Refresh obtains credentials and writes them through client.
	// It never panics and returns false on any failure.
	Refresh(ctx context.Context, client HeaderWriter) bool

	// Type returns the identifier used in AuthConfig.Type.
	Type() string
}

// Expiring is implemented by strategies that know when their credential lapses.
// ExpiresAt returns the zero time when no expiry is known.
type Expiring interface {
	ExpiresAt() time.Time
}

// Option configures the collaborators of a strategy
type Option func(*options)

type options struct {
	logger     logging.Logger
	httpClient *http.Client
	store      tokenstore.Store
	now        func() time.Time
}

// WithLogger sets the logger used to report refresh failures
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient replaces the client used for token requests.
// The strategy's own timeout is not applied to a caller-supplied client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTokenStore persists rotated refresh tokens. Only the refresh-token
// strategies use it.
func WithTokenStore(store tokenstore.Store) Option {
	return func(o *options) { o.store = store }
}

// WithClock overrides time.Now for expiry computation
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(timeout time.Duration, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	o.logger = logging.OrNop(o.logger)
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: timeout}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}
