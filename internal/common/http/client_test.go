package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infolio/internal/circuitbreaker"
	"infolio/internal/common/auth"
	"infolio/internal/common/config"
	"infolio/internal/common/errors"
)

// stubStrategy writes a fixed header and reports a fixed outcome.
type stubStrategy struct {
	mu        sync.Mutex
	ok        bool
	header    string
	value     string
	calls     int
	expiresAt time.Time
	lifetime  time.Duration
}

func (s *stubStrategy) Type() string { return "stub" }

func (s *stubStrategy) Refresh(_ context.Context, client auth.HeaderWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if !s.ok {
		return false
	}
	client.SetHeader(s.header, s.value)
	if s.lifetime > 0 {
		s.expiresAt = time.Now().Add(s.lifetime)
	}
	return true
}

func (s *stubStrategy) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

func (s *stubStrategy) refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// upstream is a scripted test server. Each request is answered by the next
// handler in the script; the last handler repeats.
type upstream struct {
	*httptest.Server

	mu       sync.Mutex
	script   []http.HandlerFunc
	requests []*recorded
}

type recorded struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func newUpstream(t *testing.T, script ...http.HandlerFunc) *upstream {
	t.Helper()

	u := &upstream{script: script}
	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		u.mu.Lock()
		u.requests = append(u.requests, &recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
			body:   body,
		})
		idx := len(u.requests) - 1
		if idx >= len(u.script) {
			idx = len(u.script) - 1
		}
		handler := u.script[idx]
		u.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	})

	u.Server = httptest.NewServer(router)
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) hits() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func (u *upstream) request(i int) *recorded {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[i]
}

func status(code int, headers ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for i := 0; i+1 < len(headers); i += 2 {
			w.Header().Set(headers[i], headers[i+1])
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(http.StatusText(code)))
	}
}

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

// requireHeader answers 401 unless the request carries header=value.
func requireHeader(header, value string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(header) != value {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ok(`{"ok":true}`)(w, r)
	}
}

func newTestClient(t *testing.T, baseURL string, recorder *sleepRecorder, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithSleep(recorder.sleep)}, opts...)
	client, err := NewClient(Config{BaseURL: baseURL}, opts...)
	require.NoError(t, err)
	return client
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base     string
		endpoint string
		expected string
	}{
		{"https://api.example.com/v2", "/widgets", "https://api.example.com/v2/widgets"},
		{"https://api.example.com/v2/", "/widgets", "https://api.example.com/v2/widgets"},
		{"https://api.example.com/v2", "widgets", "https://api.example.com/v2/widgets"},
		{"https://api.example.com/v2/", "widgets/1", "https://api.example.com/v2/widgets/1"},
		{"https://api.example.com", "", "https://api.example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.base+"+"+tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.expected, joinURL(tt.base, tt.endpoint))
		})
	}
}

func TestBuildURL(t *testing.T) {
	target, err := buildURL("https://api.example.com/v2", Request{
		Endpoint: "/widgets?sort=name",
		Params:   url.Values{"symbols": {"AAPL,MSFT"}, "limit": {"10"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2/widgets?limit=10&sort=name&symbols=AAPL%2CMSFT", target)

	target, err = buildURL("https://api.example.com", Request{Endpoint: "report", XMLQuery: "<q/>"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/report?XML=<q/>", target)

	target, err = buildURL("https://api.example.com", Request{
		Endpoint: "report",
		Params:   url.Values{"a": {"1"}},
		XMLQuery: "<q/>",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/report?a=1&XML=<q/>", target)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "https://api.example.com"})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, DefaultMaxAttempts, client.policy.MaxAttempts)
	assert.Equal(t, FallbackWait, client.policy.FallbackWait)

	_, err = NewClient(Config{BaseURL: "api.example.com"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "base_url")
}

func TestExecute_Success(t *testing.T) {
	server := newUpstream(t, ok(`{"rates":{"EUR":0.9}}`))
	client := newTestClient(t, server.URL+"/v1", &sleepRecorder{})

	resp, err := client.Get(context.Background(), "/latest", url.Values{"base": {"USD"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	require.NoError(t, resp.JSON(&payload))
	assert.Equal(t, 0.9, payload.Rates["EUR"])

	req := server.request(0)
	assert.Equal(t, "/v1/latest", req.path)
	assert.Equal(t, "USD", req.query.Get("base"))
}

func TestExecute_BadRequestIsNotRetried(t *testing.T) {
	server := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"symbol is required"}`))
	})
	recorder := &sleepRecorder{}
	client := newTestClient(t, server.URL, recorder)

	_, err := client.Get(context.Background(), "/bars", nil, nil)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeBadRequest))
	assert.Equal(t, http.StatusBadRequest, errors.StatusCode(err))
	assert.Contains(t, err.Error(), "symbol is required")
	assert.Equal(t, 1, server.hits())
	assert.Empty(t, recorder.waits)
}

func TestExecute_RateLimitedWaitsRetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter []string
		expected   time.Duration
	}{
		{name: "header seconds", retryAfter: []string{"Retry-After", "3"}, expected: 3 * time.Second},
		{name: "header absent", expected: time.Second},
		{name: "header unparsable", retryAfter: []string{"Retry-After", "soon"}, expected: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newUpstream(t, status(http.StatusTooManyRequests, tt.retryAfter...), ok(`{}`))
			recorder := &sleepRecorder{}
			client := newTestClient(t, server.URL, recorder)

			resp, err := client.Get(context.Background(), "/latest", nil, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, resp.Attempts)
			assert.Equal(t, []time.Duration{tt.expected}, recorder.waits)
		})
	}
}

func TestExecute_AttemptBoundOnPersistentRateLimit(t *testing.T) {
	server := newUpstream(t, status(http.StatusTooManyRequests, "Retry-After", "0"))
	recorder := &sleepRecorder{}

	client, err := NewClient(Config{
		BaseURL:        server.URL,
		BaseConnConfig: config.BaseConnConfig{RetryMax: 5},
	}, WithSleep(recorder.sleep))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/latest", nil, nil)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeRateLimit))
	wait, found := errors.RetryAfter(err)
	assert.True(t, found)
	assert.Zero(t, wait)
	assert.Equal(t, 5, server.hits())
	assert.Equal(t, []time.Duration{0, 0, 0, 0}, recorder.waits)
}

func TestExecute_TransportErrorsUseFallbackWait(t *testing.T) {
	server := newUpstream(t, status(http.StatusServiceUnavailable), status(http.StatusBadGateway), ok(`{}`))
	recorder := &sleepRecorder{}
	client := newTestClient(t, server.URL, recorder)

	resp, err := client.Get(context.Background(), "/latest", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, recorder.waits)
}

func TestExecute_ExhaustedTransportError(t *testing.T) {
	server := newUpstream(t, status(http.StatusInternalServerError))
	client, err := NewClient(Config{
		BaseURL:        server.URL,
		BaseConnConfig: config.BaseConnConfig{RetryMax: 2},
	}, WithSleep((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	assert.Equal(t, http.StatusInternalServerError, errors.StatusCode(err))
	assert.Equal(t, 2, server.hits())
}

func TestExecute_UnauthorizedRefreshSucceeds(t *testing.T) {
	server := newUpstream(t, requireHeader("Authorization", "Bearer fresh"))
	strategy := &stubStrategy{ok: true, header: "Authorization", value: "Bearer fresh"}
	recorder := &sleepRecorder{}
	client := newTestClient(t, server.URL, recorder, WithAuth(strategy))

	resp, err := client.Post(context.Background(), "/orders", map[string]string{"qty": "1"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, server.hits(), "exactly one reissue")
	assert.Equal(t, 1, strategy.refreshes())
	assert.Empty(t, server.request(0).header.Get("Authorization"))
	assert.Equal(t, "Bearer fresh", server.request(1).header.Get("Authorization"))
	assert.Equal(t, server.request(0).body, server.request(1).body, "same request reissued")
	assert.Empty(t, recorder.waits)
}

func TestExecute_UnauthorizedRefreshFails(t *testing.T) {
	server := newUpstream(t, status(http.StatusUnauthorized))
	strategy := &stubStrategy{ok: false}
	recorder := &sleepRecorder{}
	client := newTestClient(t, server.URL, recorder, WithAuth(strategy))

	_, err := client.Get(context.Background(), "/account", nil, nil)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
	assert.Equal(t, 1, server.hits(), "no reissue")
	assert.Equal(t, 1, strategy.refreshes())
	assert.Empty(t, recorder.waits)
}

func TestExecute_UnauthorizedWithoutStrategy(t *testing.T) {
	server := newUpstream(t, status(http.StatusUnauthorized))
	client := newTestClient(t, server.URL, &sleepRecorder{})

	_, err := client.Get(context.Background(), "/account", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
	assert.Equal(t, 1, server.hits())
}

func TestExecute_ReauthenticatesAtMostOncePerCall(t *testing.T) {
	t.Run("401 on the reissue", func(t *testing.T) {
		server := newUpstream(t, status(http.StatusUnauthorized))
		strategy := &stubStrategy{ok: true, header: "Authorization", value: "Bearer still-bad"}
		client := newTestClient(t, server.URL, &sleepRecorder{}, WithAuth(strategy))

		_, err := client.Get(context.Background(), "/account", nil, nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
		assert.Contains(t, err.Error(), "after reauthentication")
		assert.Equal(t, 2, server.hits())
		assert.Equal(t, 1, strategy.refreshes())
	})

	t.Run("401 on a later attempt", func(t *testing.T) {
		server := newUpstream(t,
			status(http.StatusUnauthorized),
			status(http.StatusServiceUnavailable),
			status(http.StatusUnauthorized))
		strategy := &stubStrategy{ok: true, header: "Authorization", value: "Bearer t"}
		recorder := &sleepRecorder{}
		client := newTestClient(t, server.URL, recorder, WithAuth(strategy))

		_, err := client.Get(context.Background(), "/account", nil, nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
		assert.Equal(t, 3, server.hits())
		assert.Equal(t, 1, strategy.refreshes())
		assert.Equal(t, []time.Duration{2 * time.Second}, recorder.waits)
	})

	t.Run("each call may reauthenticate", func(t *testing.T) {
		server := newUpstream(t, status(http.StatusUnauthorized), ok(`{}`), status(http.StatusUnauthorized), ok(`{}`))
		strategy := &stubStrategy{ok: true, header: "Authorization", value: "Bearer t"}
		client := newTestClient(t, server.URL, &sleepRecorder{}, WithAuth(strategy))

		for i := 0; i < 2; i++ {
			_, err := client.Get(context.Background(), "/account", nil, nil)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, strategy.refreshes())
	})
}

func TestExecute_APIKeyStrategy(t *testing.T) {
	server := newUpstream(t, requireHeader("Authorization", "Bearer key-123"))
	strategy := auth.NewAPIKeyStrategy(auth.APIKeyConfig{KeyName: "Authorization", APIKey: "key-123", Prefix: "Bearer "})
	client := newTestClient(t, server.URL, &sleepRecorder{}, WithAuth(strategy))

	resp, err := client.Get(context.Background(), "/latest", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)

	// the header is now a default, later calls succeed first time
	resp, err = client.Get(context.Background(), "/latest", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, "Bearer key-123", client.Headers()["Authorization"])
}

func TestExecute_ConcurrentUnauthorizedRefreshOnce(t *testing.T) {
	server := newUpstream(t, requireHeader("Authorization", "Bearer v2"))
	strategy := &stubStrategy{ok: true, header: "Authorization", value: "Bearer v2"}
	client := newTestClient(t, server.URL, &sleepRecorder{}, WithAuth(strategy))
	client.SetHeader("Authorization", "Bearer v1")

	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Get(context.Background(), "/account", nil, nil); err != nil {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&failures))
	assert.Equal(t, 1, strategy.refreshes())
}

func TestExecute_HeaderMerge(t *testing.T) {
	server := newUpstream(t, ok(`{}`))
	client, err := NewClient(Config{
		BaseURL: server.URL,
		Headers: map[string]string{"accept": "text/plain", "X-Client": "infolio"},
	})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/", nil, map[string]string{"Accept": "application/json"})
	require.NoError(t, err)

	req := server.request(0)
	assert.Equal(t, []string{"application/json"}, req.header.Values("Accept"))
	assert.Equal(t, "infolio", req.header.Get("X-Client"))

	// extra headers never leak into the defaults
	assert.Equal(t, "text/plain", client.Headers()["Accept"])
}

func TestExecute_BodyEncoding(t *testing.T) {
	tests := []struct {
		name        string
		body        interface{}
		headers     map[string]string
		contentType string
		expected    string
	}{
		{
			name:        "json when content type says so",
			body:        map[string]interface{}{"symbol": "AAPL", "qty": 2},
			headers:     map[string]string{"content-type": "Application/JSON; charset=utf-8"},
			contentType: "Application/JSON; charset=utf-8",
			expected:    `{"qty":2,"symbol":"AAPL"}`,
		},
		{
			name:        "form by default",
			body:        map[string]string{"grant_type": "client_credentials", "scope": "a b"},
			contentType: "application/x-www-form-urlencoded",
			expected:    "grant_type=client_credentials&scope=a+b",
		},
		{
			name:        "form values",
			body:        url.Values{"symbols": {"AAPL", "MSFT"}},
			contentType: "application/x-www-form-urlencoded",
			expected:    "symbols=AAPL&symbols=MSFT",
		},
		{
			name:        "raw bytes verbatim",
			body:        []byte("<query/>"),
			headers:     map[string]string{"Content-Type": "application/xml"},
			contentType: "application/xml",
			expected:    "<query/>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newUpstream(t, ok(`{}`))
			client := newTestClient(t, server.URL, &sleepRecorder{})

			_, err := client.Post(context.Background(), "/submit", tt.body, tt.headers, nil)
			require.NoError(t, err)

			req := server.request(0)
			assert.Equal(t, tt.contentType, req.header.Get("Content-Type"))
			if json.Valid([]byte(tt.expected)) {
				assert.JSONEq(t, tt.expected, string(req.body))
			} else {
				assert.Equal(t, tt.expected, string(req.body))
			}
		})
	}
}

func TestExecute_ReaderBodyResentOnRetry(t *testing.T) {
	server := newUpstream(t, status(http.StatusServiceUnavailable), ok(`{}`))
	client := newTestClient(t, server.URL, &sleepRecorder{})

	_, err := client.Execute(context.Background(), Request{
		Method:   http.MethodPut,
		Endpoint: "/doc",
		Body:     bytes.NewBufferString("payload"),
	})
	require.NoError(t, err)

	assert.Equal(t, "payload", string(server.request(0).body))
	assert.Equal(t, "payload", string(server.request(1).body))
	assert.Equal(t, http.MethodPut, server.request(1).method)
}

func TestExecute_UnencodableBody(t *testing.T) {
	server := newUpstream(t, ok(`{}`))
	client := newTestClient(t, server.URL, &sleepRecorder{})

	_, err := client.Post(context.Background(), "/submit", 42, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Zero(t, server.hits())
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client, err := NewClient(Config{
		BaseURL:        server.URL,
		BaseConnConfig: config.BaseConnConfig{Timeout: 50 * time.Millisecond, RetryMax: 2},
	}, WithSleep((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/slow", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	assert.Equal(t, 2, server.hits())
}

func TestExecute_CancelledDuringWait(t *testing.T) {
	server := newUpstream(t, status(http.StatusTooManyRequests, "Retry-After", "60"))
	ctx, cancel := context.WithCancel(context.Background())

	client := newTestClient(t, server.URL, &sleepRecorder{}, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := client.Get(ctx, "/latest", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, server.hits())
}

func TestExecute_CircuitBreaker(t *testing.T) {
	server := newUpstream(t, status(http.StatusInternalServerError))
	breaker := circuitbreaker.NewGoBreaker("upstream", circuitbreaker.Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)
	client := newTestClient(t, server.URL, &sleepRecorder{}, WithCircuitBreaker(breaker))

	_, err := client.Get(context.Background(), "/", nil, nil)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	assert.Contains(t, err.Error(), "circuit breaker")
	assert.Equal(t, 2, server.hits(), "open breaker stops dispatch")
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())
}

func TestExecute_CircuitBreakerIgnoresClientErrors(t *testing.T) {
	server := newUpstream(t, status(http.StatusBadRequest))
	breaker := circuitbreaker.NewGoBreaker("upstream", circuitbreaker.Config{
		MaxFailures:           1,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)
	client := newTestClient(t, server.URL, &sleepRecorder{}, WithCircuitBreaker(breaker))

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "/", nil, nil)
		assert.True(t, errors.IsType(err, errors.ErrTypeBadRequest))
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
	assert.Equal(t, 3, server.hits())
}

// countingLimiter admits everything and counts waits.
type countingLimiter struct {
	waits int32
}

func (l *countingLimiter) Wait(context.Context) error {
	atomic.AddInt32(&l.waits, 1)
	return nil
}
func (l *countingLimiter) TryAcquire() bool              { return true }
func (l *countingLimiter) Stats() map[string]interface{} { return nil }

func TestExecute_RateLimiterPacesEveryDispatch(t *testing.T) {
	server := newUpstream(t, status(http.StatusServiceUnavailable), ok(`{}`))
	limiter := &countingLimiter{}
	client := newTestClient(t, server.URL, &sleepRecorder{}, WithRateLimiter(limiter))

	_, err := client.Get(context.Background(), "/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&limiter.waits))
}

func TestExecute_ProactiveRefresh(t *testing.T) {
	server := newUpstream(t, requireHeader("Authorization", "Bearer renewed"))

	t.Run("refreshes an expiring credential before dispatch", func(t *testing.T) {
		strategy := &stubStrategy{
			ok:        true,
			header:    "Authorization",
			value:     "Bearer renewed",
			expiresAt: time.Now().Add(10 * time.Second),
			lifetime:  time.Hour,
		}
		client := newTestClient(t, server.URL, &sleepRecorder{},
			WithAuth(strategy), WithProactiveRefresh(time.Minute))

		resp, err := client.Get(context.Background(), "/", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Attempts)
		assert.Equal(t, 1, strategy.refreshes())

		// the new expiry is outside the window
		_, err = client.Get(context.Background(), "/", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, strategy.refreshes())
	})

	t.Run("disabled by default", func(t *testing.T) {
		strategy := &stubStrategy{
			ok:        true,
			header:    "Authorization",
			value:     "Bearer renewed",
			expiresAt: time.Now().Add(-time.Minute),
		}
		client := newTestClient(t, server.URL, &sleepRecorder{}, WithAuth(strategy))

		resp, err := client.Get(context.Background(), "/", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Attempts, "reactive 401 path")
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", time.Second},
		{"0", 0},
		{"120", 2 * time.Minute},
		{"-5", time.Second},
		{"1.5", time.Second},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{now.Add(-time.Hour).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseRetryAfter(tt.value, clock))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status   int
		expected errors.ErrorType
	}{
		{200, ""},
		{204, ""},
		{400, errors.ErrTypeBadRequest},
		{401, errors.ErrTypeAuth},
		{403, errors.ErrTypeTransport},
		{404, errors.ErrTypeTransport},
		{429, errors.ErrTypeRateLimit},
		{500, errors.ErrTypeTransport},
		{302, errors.ErrTypeTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := classify(tt.status, http.Header{}, nil, time.Now)
			assert.Equal(t, tt.expected, errors.GetType(err))
		})
	}
}
