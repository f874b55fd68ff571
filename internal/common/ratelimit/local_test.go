package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infolio/internal/common/errors"
)

func TestLocalLimiter(t *testing.T) {
	config := Config{Enabled: true, MaxRequests: 10, Window: time.Second, BurstSize: 5}

	limiter, err := NewLocalLimiter(config)
	require.NoError(t, err)

	for i := 0; i < config.BurstSize; i++ {
		assert.True(t, limiter.TryAcquire(), "request %d should be allowed", i)
	}
	assert.False(t, limiter.TryAcquire(), "request should be denied after burst exhausted")

	// one token refills every 100ms
	assert.NoError(t, limiter.Wait(context.Background()))
}

func TestLocalLimiter_Disabled(t *testing.T) {
	limiter, err := NewLocalLimiter(PerMinute(0))
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.True(t, limiter.TryAcquire())
	}
	assert.NoError(t, limiter.Wait(context.Background()))
	assert.Equal(t, false, limiter.Stats()["enabled"])
}

func TestLocalLimiter_WaitCancelled(t *testing.T) {
	limiter, err := NewLocalLimiter(PerMinute(1))
	require.NoError(t, err)
	require.True(t, limiter.TryAcquire())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
}

func TestLocalLimiter_WaitBeyondDeadline(t *testing.T) {
	limiter, err := NewLocalLimiter(PerMinute(1))
	require.NoError(t, err)
	require.True(t, limiter.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestConfig_Validate(t *testing.T) {
	config := Config{Enabled: true, MaxRequests: 200}
	require.NoError(t, config.Validate())
	assert.Equal(t, time.Second, config.Window)
	assert.Equal(t, 1, config.BurstSize)

	bad := Config{Enabled: true}
	assert.Error(t, bad.Validate())

	_, err := NewLocalLimiter(bad)
	assert.Error(t, err)
}

func TestPerMinute(t *testing.T) {
	config := PerMinute(200)
	assert.True(t, config.Enabled)
	assert.Equal(t, 300*time.Millisecond, config.Interval())

	assert.False(t, PerMinute(-1).Enabled)
	assert.Zero(t, PerMinute(0).Interval())
}
