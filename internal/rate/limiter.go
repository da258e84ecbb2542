package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces limiter keys.
const DefaultPrefix = "fleet:rl"

// Decision reports the counter state after one hit.
type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int
	RetryIn   time.Duration
	Remaining int
}

// Limiter counts hits per key in fixed windows using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Allow records one hit for key and reports whether it is within limit hits
// per window. A Redis failure returns an error wrapping
// [ErrRedisUnavailable] together with an allowing decision.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	d := Decision{Allowed: true, Limit: limit, Remaining: limit}
	if l == nil || l.redis == nil || limit <= 0 || window <= 0 {
		return d, nil
	}

	fullKey := l.key(key)
	count, err := l.incrementWithTTL(ctx, fullKey, window)
	if err != nil {
		return d, err
	}
	d.Count = count
	d.Remaining = max(limit-int(count), 0)
	if count <= int64(limit) {
		return d, nil
	}

	d.Allowed = false
	ttl, err := l.redis.PTTL(ctx, fullKey).Result()
	if err == nil && ttl > 0 {
		d.RetryIn = ttl
	} else {
		d.RetryIn = window
	}
	return d, ErrRateLimited
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Count returns the hits recorded for key in the current window. Missing
// keys return zero.
func (l *Limiter) Count(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func (l *Limiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
