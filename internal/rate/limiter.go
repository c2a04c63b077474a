package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned once a subject exceeds MaxAttempts within a
	// window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis transport or command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	// Prefix namespaces keys. Defaults to "acrl".
	Prefix string
	// MaxAttempts is the number of hits allowed per window.
	MaxAttempts int
	// Window is the lifetime of a counter, started by its first hit.
	Window time.Duration
}

// Limiter counts hits per scope and subject.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "acrl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when subject has used up its budget in scope.
// It does not count as a hit.
func (l *Limiter) Check(ctx context.Context, scope, subject string) error {
	count, err := l.redis.Get(ctx, l.key(scope, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Hit records one attempt and returns ErrRateLimited if that attempt used
// up the budget.
func (l *Limiter) Hit(ctx context.Context, scope, subject string) error {
	key := l.key(scope, subject)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: only the first hit sets the TTL.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// RetryAfter returns the time left in subject's current window, or zero
// when no window is open.
func (l *Limiter) RetryAfter(ctx context.Context, scope, subject string) (time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, l.key(scope, subject)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *Limiter) key(scope, subject string) string {
	return l.config.Prefix + ":" + scope + ":" + subject
}
