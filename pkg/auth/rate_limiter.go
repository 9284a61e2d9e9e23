package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "conduit-backend/pkg/errors"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// RedisRateLimiter implements fixed-window rate limiting backed by Redis,
// so the limit holds across every instance sharing the same Redis.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisRateLimiter creates a rate limiter allowing limit requests per
// window for each key.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit",
	}
}

func (l *RedisRateLimiter) bucketKey(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Allow increments the key's counter and reports whether the request
// stays within the limit. The first hit opens the window by setting the
// counter's expiry; when it lapses the next hit starts a fresh window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.bucketKey(key)

	count, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, pkgerrors.NewInternalError("rate limiter unavailable").WithCause(err)
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := l.client.Expire(ctx, bucket, l.window).Err(); err != nil {
			return false, pkgerrors.NewInternalError("rate limiter unavailable").WithCause(err)
		}
	}
	return count <= l.limit, nil
}

// Reset clears the current window for a key
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.bucketKey(key)).Err(); err != nil {
		return pkgerrors.NewInternalError("rate limiter unavailable").WithCause(err)
	}
	return nil
}
