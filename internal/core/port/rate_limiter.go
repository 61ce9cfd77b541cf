package port

import (
	"context"
	"time"
)

// RateDecision is the outcome of a rate-limit check.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
}

// RateLimiter admits or rejects attempts per identifier over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string, at time.Time) (RateDecision, error)
}
