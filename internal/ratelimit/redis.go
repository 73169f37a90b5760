package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptsKeyPrefix = "ratelimit:attempts:"
	blockKeyPrefix    = "ratelimit:block:"
)

// RedisLimiter implements the Limiter contract on a shared Redis backend,
// for deployments with more than one instance. Expiry is handled by key
// TTLs, so no cleanup scan is needed. Redis failures fail open: an
// unreachable store must not lock every user out.
type RedisLimiter struct {
	client *redis.Client
	policy Policy
}

func NewRedisLimiter(client *redis.Client, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy}
}

func (l *RedisLimiter) Check(ctx context.Context, clientID string) (bool, time.Duration) {
	ttl, err := l.client.TTL(ctx, blockKeyPrefix+clientID).Result()
	if err != nil {
		slog.Error("rate limit check failed", "error", err, "client", clientID)
		return true, 0
	}
	if ttl > 0 {
		return false, ttl
	}
	return true, 0
}

func (l *RedisLimiter) RecordAttempt(ctx context.Context, clientID string, success bool) {
	if success {
		if err := l.client.Del(ctx, attemptsKeyPrefix+clientID, blockKeyPrefix+clientID).Err(); err != nil {
			slog.Error("rate limit reset failed", "error", err, "client", clientID)
		}
		return
	}

	key := attemptsKeyPrefix + clientID
	attempts, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		slog.Error("rate limit record failed", "error", err, "client", clientID)
		return
	}
	if attempts == 1 {
		l.client.Expire(ctx, key, l.policy.Window)
	}

	if attempts >= int64(l.policy.MaxAttempts) {
		pipe := l.client.TxPipeline()
		pipe.Set(ctx, blockKeyPrefix+clientID, 1, l.policy.Block)
		pipe.Del(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			slog.Error("rate limit block failed", "error", err, "client", clientID)
		}
	}
}
