package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkuzn/auth-service/internal/core/port"
)

// SlidingWindowConfig defines the window applied per identifier.
type SlidingWindowConfig struct {
	KeyPrefix   string
	Window      time.Duration
	MaxAttempts int
}

// SlidingWindowLimiter counts attempts per identifier in Redis sorted sets,
// scored by nanosecond timestamp, and trims entries outside the window on
// every check.
type SlidingWindowLimiter struct {
	client *redis.Client
	cfg    SlidingWindowConfig
}

// NewSlidingWindowLimiter constructs a limiter using the provided Redis client and config.
func NewSlidingWindowLimiter(client *redis.Client, cfg SlidingWindowConfig) (*SlidingWindowLimiter, error) {
	if cfg.Window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	return &SlidingWindowLimiter{client: client, cfg: cfg}, nil
}

// Allow records an attempt for the identifier and reports whether it fits
// inside the window. Denied attempts are not recorded, so a client that keeps
// retrying while blocked is not penalized beyond the original streak.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, identifier string, at time.Time) (port.RateDecision, error) {
	key := l.key(identifier)
	threshold := strconv.FormatInt(at.Add(-l.cfg.Window).UnixNano(), 10)

	if err := l.client.ZRemRangeByScore(ctx, key, "-inf", threshold).Err(); err != nil {
		return port.RateDecision{}, fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return port.RateDecision{}, fmt.Errorf("redis zcard: %w", err)
	}

	if int(count) >= l.cfg.MaxAttempts {
		retryAfter, reset, err := l.windowReset(ctx, key, at)
		if err != nil {
			return port.RateDecision{}, err
		}
		return port.RateDecision{Allowed: false, Remaining: 0, RetryAfter: retryAfter, Reset: reset}, nil
	}

	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}
	if err := l.client.ZAdd(ctx, key, member).Err(); err != nil {
		return port.RateDecision{}, fmt.Errorf("redis zadd: %w", err)
	}
	if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
		return port.RateDecision{}, fmt.Errorf("redis expire: %w", err)
	}

	return port.RateDecision{
		Allowed:   true,
		Remaining: l.cfg.MaxAttempts - int(count) - 1,
		Reset:     at.Add(l.cfg.Window),
	}, nil
}

// windowReset derives when the oldest attempt falls out of the window.
func (l *SlidingWindowLimiter) windowReset(ctx context.Context, key string, at time.Time) (time.Duration, time.Time, error) {
	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis zrange: %w", err)
	}
	if len(oldest) == 0 {
		return 0, at, nil
	}

	reset := time.Unix(0, int64(oldest[0].Score)).Add(l.cfg.Window)
	retryAfter := reset.Sub(at)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return retryAfter, reset, nil
}

func (l *SlidingWindowLimiter) key(identifier string) string {
	return fmt.Sprintf("%s:%s", l.cfg.KeyPrefix, identifier)
}

var _ port.RateLimiter = (*SlidingWindowLimiter)(nil)
