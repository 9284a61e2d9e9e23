package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, limit, window), mr
}

func TestRedisRateLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit should be refused")
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	allowed, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = l.Allow(ctx, "198.51.100.9")
	require.NoError(t, err)
	assert.True(t, allowed, "a different key has its own window")
}

func TestRedisRateLimiter_ResetClearsWindow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	allowed, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, l.Reset(ctx, "203.0.113.7"))

	allowed, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed, "reset opens the window again")
}

func TestRedisRateLimiter_WindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)

	allowed, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, allowed)

	// The counter key carries the window TTL.
	mr.FastForward(time.Minute + time.Second)

	allowed, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed, "a fresh window starts once the TTL lapses")
}
