// Package http implements the request executor shared by every upstream
// integration: it builds requests, classifies responses, retries transient
// failures and reauthenticates through a pluggable auth.Strategy.
//
// Classification of a response, in order:
//
//	400           BadRequest, returned at once
//	429           RateLimited, retried after Retry-After seconds (1 when absent)
//	401           Refresh the strategy and reissue once per Execute call
//	other non-2xx TransportError, retried after FallbackWait
//
// Network failures and timeouts are TransportErrors as well.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"infolio/internal/circuitbreaker"
	"infolio/internal/common/auth"
	"infolio/internal/common/config"
	"infolio/internal/common/errors"
	"infolio/internal/common/logging"
	"infolio/internal/common/ratelimit"
	"infolio/internal/common/utils"
	"infolio/internal/common/validation"
)

// maxResponseBody caps how much of an upstream response is buffered.
const maxResponseBody = 32 << 20

// Config holds the immutable settings of a Client
type Config struct {
	config.BaseConnConfig

	// BaseURL is the origin every endpoint is joined to
	BaseURL string
	// Headers are sent with every request. Only the auth strategy changes them.
	Headers map[string]string
}

// Option customizes a Client
type Option func(*Client)

// WithAuth binds the strategy consulted on 401 responses
func WithAuth(strategy auth.Strategy) Option {
	return func(c *Client) { c.strategy = strategy }
}

// WithRateLimiter paces every dispatch through limiter
func WithRateLimiter(limiter ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithCircuitBreaker wraps every dispatch in breaker
func WithCircuitBreaker(breaker circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = breaker }
}

// WithProactiveRefresh refreshes credentials before an attempt when the bound
// strategy implements auth.Expiring and expires within skew.
func WithProactiveRefresh(skew time.Duration) Option {
	return func(c *Client) { c.refreshSkew = skew }
}

// WithLogger sets the client logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSleep replaces the wait between attempts
func WithSleep(sleep utils.SleepFunc) Option {
	return func(c *Client) { c.policy.Sleep = sleep }
}

// WithHTTPClient replaces the underlying client. Config.Timeout is applied to it.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithName tags log lines with the upstream provider name
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// headerSet is an immutable snapshot of the default headers. gen increases
// with every write so a reauthentication can tell whether another caller
// already replaced the credentials it saw rejected.
type headerSet struct {
	values map[string]string
	gen    uint64
}

// Client executes requests against one upstream.
//
// A Client is safe for concurrent use. Requests read the default headers as a
// snapshot; strategies replace the snapshot copy-on-write, and
// reauthentication is serialized so concurrent 401s trigger one refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     RetryPolicy
	strategy   auth.Strategy
	limiter    ratelimit.Limiter
	breaker    circuitbreaker.Breaker
	logger     logging.Logger
	name       string

	refreshSkew time.Duration
	now         func() time.Time

	headers  atomic.Pointer[headerSet]
	headerMu sync.Mutex
	authMu   sync.Mutex
}

// NewClient creates an executor. Zero Timeout and RetryMax take the
// defaults of 5 seconds and 5 attempts.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetConnectionDefaults(0)

	v := validation.NewValidatorWithPrefix("http client")
	v.RequireURL(cfg.BaseURL, "base_url")
	config.ValidateBaseConn(cfg.BaseConnConfig, v)
	if err := v.Error(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		policy: RetryPolicy{
			MaxAttempts:  cfg.RetryMax,
			FallbackWait: FallbackWait,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = cfg.Timeout
	c.logger = logging.OrNop(c.logger)
	if c.name != "" {
		c.logger = c.logger.WithFields(logging.String("provider", c.name))
	}

	c.headers.Store(&headerSet{values: mergeHeaders(cfg.Headers, nil)})
	return c, nil
}

// SetHeader replaces one default header. Strategies call it during Refresh.
func (c *Client) SetHeader(name, value string) {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()

	current := c.headers.Load()
	next := &headerSet{
		values: mergeHeaders(current.values, map[string]string{name: value}),
		gen:    current.gen + 1,
	}
	c.headers.Store(next)
}

// Headers returns a copy of the default headers
func (c *Client) Headers() map[string]string {
	return mergeHeaders(c.headers.Load().values, nil)
}

// BaseURL returns the configured origin
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Reauthenticate runs the bound strategy now. It returns false when no
// strategy is bound or the refresh fails.
func (c *Client) Reauthenticate(ctx context.Context) bool {
	return c.reauthenticate(ctx, c.headers.Load().gen, true)
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, endpoint string, params map[string][]string, headers map[string]string) (*Response, error) {
	return c.Execute(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: endpoint,
		Params:   params,
		Headers:  headers,
	})
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, params map[string][]string) (*Response, error) {
	return c.Execute(ctx, Request{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Params:   params,
		Body:     body,
		Headers:  headers,
	})
}

// Execute performs one logical operation, retrying per the client's
// RetryPolicy. Reauthentication happens at most once per call: a 401 after
// it returns an authentication error.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	ctx = logging.ContextWithRequestID(ctx, uuid.NewString())
	if c.name != "" {
		ctx = logging.ContextWithProvider(ctx, c.name)
	}
	log := c.logger.WithContext(ctx).WithFields(
		logging.String("method", req.Method),
		logging.String("endpoint", req.Endpoint))

	target, err := buildURL(c.baseURL, req)
	if err != nil {
		return nil, err
	}

	req.Body, err = rawBody(req.Body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	issued := 0
	reauthenticated := false

	var resp *Response
	err = c.policy.Run(ctx, log, func(attempt int) error {
		c.refreshIfExpiring(ctx, log)

		r, gen, err := c.send(ctx, req, target)
		issued++
		if !isUnauthorized(err) {
			resp = r
			return err
		}

		if reauthenticated {
			return errors.AuthenticationFailedError("credentials rejected after reauthentication", err)
		}
		reauthenticated = true

		log.Info("Upstream rejected credentials, reauthenticating",
			logging.Int("attempt", attempt))
		if !c.reauthenticate(ctx, gen, false) {
			return errors.AuthenticationFailedError("reauthentication failed", err)
		}

		r, _, err = c.send(ctx, req, target)
		issued++
		if isUnauthorized(err) {
			return errors.AuthenticationFailedError("credentials rejected after reauthentication", err)
		}
		resp = r
		return err
	})
	if err != nil {
		log.Debug("Request failed",
			logging.Int("requests", issued),
			logging.String("error_type", string(errors.GetType(err))),
			logging.Err(err))
		return nil, err
	}

	resp.Duration = time.Since(start)
	resp.Attempts = issued
	log.Debug("Request succeeded",
		logging.Int("status", resp.StatusCode),
		logging.Int("requests", issued),
		logging.Duration("duration", resp.Duration))
	return resp, nil
}

// send issues one request with the current header snapshot. It returns the
// generation of that snapshot alongside the classified outcome.
func (c *Client) send(ctx context.Context, req Request, target string) (*Response, uint64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	snapshot := c.headers.Load()
	headers := mergeHeaders(snapshot.values, req.Headers)

	body, contentType, err := encodeBody(req.Body, headers)
	if err != nil {
		return nil, snapshot.gen, err
	}
	if contentType != "" && headers["Content-Type"] == "" {
		headers["Content-Type"] = contentType
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, snapshot.gen, errors.ValidationError(fmt.Sprintf("invalid request: %v", err))
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	var resp *Response
	roundTrip := func() error {
		var err error
		resp, err = c.roundTrip(httpReq)
		return err
	}

	if c.breaker != nil {
		err = c.breaker.Execute(ctx, roundTrip)
	} else {
		err = roundTrip()
	}
	return resp, snapshot.gen, err
}

// roundTrip dispatches and classifies one response
func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransportError("request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.TransportError("failed to read response body", err)
	}

	if err := classify(httpResp.StatusCode, httpResp.Header, body, c.now); err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// classify maps a status to the error taxonomy; nil means success.
func classify(status int, header http.Header, body []byte, now func() time.Time) error {
	switch {
	case status == http.StatusBadRequest:
		return errors.BadRequestError(status, body)
	case status == http.StatusTooManyRequests:
		return errors.RateLimitedError(parseRetryAfter(header.Get("Retry-After"), now))
	case status == http.StatusUnauthorized:
		return errUnauthorized(body)
	case status < 200 || status >= 300:
		return errors.HTTPStatusError(status, body)
	default:
		return nil
	}
}

// parseRetryAfter reads delta-seconds or an HTTP date, falling back to DefaultRetryAfter
func parseRetryAfter(value string, now func() time.Time) time.Duration {
	if value == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now()); d > 0 {
			return d.Round(time.Second)
		}
		return 0
	}
	return DefaultRetryAfter
}

// errUnauthorized marks a 401 before the auth path decides its fate. It
// never leaves Execute.
func errUnauthorized(body []byte) error {
	e := errors.AuthenticationFailedError("upstream rejected credentials", nil)
	e.StatusCode = http.StatusUnauthorized
	e.Body = body
	return e
}

func isUnauthorized(err error) bool {
	return errors.IsType(err, errors.ErrTypeAuth) && errors.StatusCode(err) == http.StatusUnauthorized
}

// reauthenticate refreshes credentials unless a concurrent caller already
// replaced the header generation seen. force skips that check.
func (c *Client) reauthenticate(ctx context.Context, seen uint64, force bool) bool {
	if c.strategy == nil {
		c.logger.Warn("No authentication strategy bound, cannot reauthenticate")
		return false
	}

	c.authMu.Lock()
	defer c.authMu.Unlock()

	if !force && c.headers.Load().gen != seen {
		return true
	}

	ok := c.strategy.Refresh(ctx, c)
	if !ok {
		c.logger.Warn("Reauthentication failed",
			logging.String("strategy", c.strategy.Type()))
	}
	return ok
}

// refreshIfExpiring refreshes ahead of expiry when enabled. Failures are
// logged; the 401 path still applies.
func (c *Client) refreshIfExpiring(ctx context.Context, log logging.Logger) {
	if c.refreshSkew <= 0 || c.strategy == nil {
		return
	}
	expiring, ok := c.strategy.(auth.Expiring)
	if !ok {
		return
	}

	expiresAt := expiring.ExpiresAt()
	if expiresAt.IsZero() || c.now().Add(c.refreshSkew).Before(expiresAt) {
		return
	}

	log.Debug("Credentials expiring, refreshing ahead of request",
		logging.Any("expires_at", expiresAt))
	c.authMu.Lock()
	defer c.authMu.Unlock()

	// another caller may have refreshed while we waited
	if expiresAt = expiring.ExpiresAt(); !expiresAt.IsZero() && c.now().Add(c.refreshSkew).Before(expiresAt) {
		return
	}
	if !c.strategy.Refresh(ctx, c) {
		log.Warn("Proactive refresh failed",
			logging.String("strategy", c.strategy.Type()))
	}
}
