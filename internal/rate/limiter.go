package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verisella/authcore/policy"
)

// Limiter enforces the policy document's named rate rules with
// fixed-window Redis counters: INCR plus EXPIRE on first hit. Rules are
// passed per call so policy hot-reloads take effect immediately.
type Limiter interface {
	// Allow consumes one attempt from the rule's budget for the
	// identifier and returns ErrRateLimited when the budget is spent.
	Allow(ctx context.Context, rule, identifier string, r policy.RateRule) error
	// Reset clears the counter, called after a successful attempt.
	Reset(ctx context.Context, rule, identifier string) error
}

// RedisLimiter is the Redis-backed [Limiter].
type RedisLimiter struct {
	redis redis.UniversalClient
}

// NewRedisLimiter creates a limiter over the given client.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{redis: client}
}

func key(rule, identifier string) string {
	return "arl:" + rule + ":" + identifier
}

// Allow implements [Limiter].
func (l *RedisLimiter) Allow(ctx context.Context, rule, identifier string, r policy.RateRule) error {
	if r.Requests <= 0 || r.Interval <= 0 {
		return nil
	}

	k := key(rule, identifier)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, r.Interval).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(r.Requests) {
		return ErrRateLimited
	}
	return nil
}

// Reset implements [Limiter].
func (l *RedisLimiter) Reset(ctx context.Context, rule, identifier string) error {
	if err := l.redis.Del(ctx, key(rule, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// interval guard for local limiter eviction
const localEvictAfter = 10 * time.Minute
