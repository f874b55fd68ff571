package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infolio/internal/common/errors"
	"infolio/internal/common/logging"
)

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.NewNopLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", Config{MaxFailures: 2, Timeout: 100 * time.Millisecond, MaxConcurrentRequests: 1}, logger)

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("circuit opens after transport failures", func(t *testing.T) {
		cb := NewGoBreaker("test-failures", Config{MaxFailures: 3, Timeout: time.Minute, MaxConcurrentRequests: 1}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.HTTPStatusError(503, nil)
			})
			require.Error(t, err)
		}

		assert.Equal(t, StateOpen, cb.State())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("This should not be called")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
		assert.True(t, errors.IsRetryable(err), "open breaker must be retryable")
		assert.Contains(t, err.Error(), "open")
	})

	t.Run("deliberate upstream answers do not trip", func(t *testing.T) {
		cb := NewGoBreaker("test-deliberate", Config{MaxFailures: 2, Timeout: time.Minute, MaxConcurrentRequests: 1}, logger)

		failures := []error{
			errors.BadRequestError(400, nil),
			errors.RateLimitedError(time.Second),
			errors.AuthenticationFailedError("no", nil),
			errors.BadRequestError(400, nil),
			context.Canceled,
		}
		for _, failure := range failures {
			err := cb.Execute(context.Background(), func() error { return failure })
			assert.Equal(t, failure, err, "the original error is returned")
		}

		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.Stats().ConsecutiveFailures)
	})

	t.Run("circuit transitions to half-open and closes", func(t *testing.T) {
		cb := NewGoBreaker("test-half-open", Config{MaxFailures: 2, Timeout: 50 * time.Millisecond, MaxConcurrentRequests: 1}, logger)

		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error {
				return errors.TransportError("dial", nil)
			})
		}
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		cb := NewGoBreaker("test-ctx", DefaultConfig(), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})

		assert.False(t, called)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := NewGoBreaker("test-invalid", Config{}, nil)

		for i := 0; i < DefaultConfig().MaxFailures-1; i++ {
			_ = cb.Execute(context.Background(), func() error { return errors.TransportError("x", nil) })
		}
		assert.Equal(t, StateClosed, cb.State())

		_ = cb.Execute(context.Background(), func() error { return errors.TransportError("x", nil) })
		assert.Equal(t, StateOpen, cb.State())
	})
}

func TestGoBreakerAdapter_Stats(t *testing.T) {
	cb := NewGoBreaker("stats", DefaultConfig(), nil)

	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return errors.TransportError("x", nil) })

	stats := cb.Stats()
	assert.Equal(t, "stats", stats.Name)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MaxFailures: 1, Timeout: time.Second}.Validate())
	assert.Error(t, Config{MaxFailures: 1, MaxConcurrentRequests: 1}.Validate())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
