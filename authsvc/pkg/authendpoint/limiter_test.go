package authendpoint

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestClientLimiterIsolatesClients(t *testing.T) {
	l := NewClientLimiter(rate.Every(time.Hour), 2, time.Minute)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	assert.True(t, l.Allow("10.0.0.2"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestClientLimiterForgetsIdleClients(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	l := NewClientLimiter(rate.Every(time.Hour), 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewClientLimiter(rate.Every(time.Hour), 1, time.Minute)
	e := RateLimitMiddleware(l)(func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})

	first := context.WithValue(context.Background(), ClientContextKey, "10.0.0.1")
	second := context.WithValue(context.Background(), ClientContextKey, "10.0.0.2")

	_, err := e(first, nil)
	require.NoError(t, err)

	_, err = e(first, nil)
	assert.ErrorIs(t, err, ratelimit.ErrLimited)

	resp, err := e(second, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
