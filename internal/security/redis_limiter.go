package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLimiter shares fixed-window counters between processes through Redis.
// Keys expire with their window, so the keyspace stays bounded.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	logger zerolog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter storing counters under prefix.
func NewRedisLimiter(client redis.Cmdable, prefix string, logger zerolog.Logger) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redis-rate-limiter").Logger(),
	}
}

// Allow implements Limiter. The first hit of a window sets its expiry
// (PEXPIRE NX, Redis 7+) in the same transaction as the increment.
func (l *RedisLimiter) Allow(ctx context.Context, identifier string, maxRequests int, window time.Duration) (bool, error) {
	key := l.prefix + identifier

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Do(ctx, "pexpire", key, window.Milliseconds(), "nx")
		return nil
	})
	if err != nil {
		l.logger.Error().Err(err).Str("identifier", identifier).Msg("failed to update rate window")
		return false, fmt.Errorf("failed to update rate window: %w", err)
	}

	count := incr.Val()
	if count > int64(maxRequests) {
		l.logger.Debug().
			Str("identifier", identifier).
			Int64("count", count).
			Int("max_requests", maxRequests).
			Msg("rate limit exceeded")
		return false, nil
	}
	return true, nil
}
