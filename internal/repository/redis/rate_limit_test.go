package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *red.Client {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client
}

func TestSlidingWindowLimiterAllowsWithinLimit(t *testing.T) {
	client := newTestRedis(t)
	limiter, err := NewSlidingWindowLimiter(client, SlidingWindowConfig{
		KeyPrefix:   "test:limit",
		Window:      time.Minute,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("NewSlidingWindowLimiter returned error: %v", err)
	}

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "1.2.3.4", now.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("attempt %d denied", i+1)
		}
		if decision.Remaining != 3-i-1 {
			t.Fatalf("attempt %d: remaining %d", i+1, decision.Remaining)
		}
	}

	decision, err := limiter.Allow(ctx, "1.2.3.4", now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected fourth attempt to be denied")
	}
	if decision.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", decision.RetryAfter)
	}
}

func TestSlidingWindowLimiterScopedPerIdentifier(t *testing.T) {
	client := newTestRedis(t)
	limiter, err := NewSlidingWindowLimiter(client, SlidingWindowConfig{
		KeyPrefix:   "test:limit",
		Window:      time.Minute,
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("NewSlidingWindowLimiter returned error: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	if decision, err := limiter.Allow(ctx, "1.2.3.4", now); err != nil || !decision.Allowed {
		t.Fatalf("first identifier denied: %+v err=%v", decision, err)
	}
	if decision, err := limiter.Allow(ctx, "5.6.7.8", now); err != nil || !decision.Allowed {
		t.Fatalf("second identifier denied: %+v err=%v", decision, err)
	}
	if decision, err := limiter.Allow(ctx, "1.2.3.4", now); err != nil || decision.Allowed {
		t.Fatalf("first identifier should be blocked: %+v err=%v", decision, err)
	}
}

func TestSlidingWindowLimiterRecoversAfterWindow(t *testing.T) {
	client := newTestRedis(t)
	limiter, err := NewSlidingWindowLimiter(client, SlidingWindowConfig{
		KeyPrefix:   "test:limit",
		Window:      time.Minute,
		MaxAttempts: 2,
	})
	if err != nil {
		t.Fatalf("NewSlidingWindowLimiter returned error: %v", err)
	}

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := limiter.Allow(ctx, "1.2.3.4", now); err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
	}

	if decision, err := limiter.Allow(ctx, "1.2.3.4", now.Add(time.Second)); err != nil || decision.Allowed {
		t.Fatalf("expected denial inside window: %+v err=%v", decision, err)
	}

	// Attempts fall out of the window once it slides past them.
	later := now.Add(2 * time.Minute)
	decision, err := limiter.Allow(ctx, "1.2.3.4", later)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected recovery after window elapsed")
	}
}

func TestSlidingWindowLimiterValidatesConfig(t *testing.T) {
	client := newTestRedis(t)

	if _, err := NewSlidingWindowLimiter(client, SlidingWindowConfig{Window: 0, MaxAttempts: 5}); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := NewSlidingWindowLimiter(client, SlidingWindowConfig{Window: time.Minute, MaxAttempts: 0}); err == nil {
		t.Fatal("expected error for zero max attempts")
	}
}
