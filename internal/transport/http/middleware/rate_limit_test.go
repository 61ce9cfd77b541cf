package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/vkuzn/auth-service/internal/core/port"
)

type fakeLimiter struct {
	decision port.RateDecision
	err      error
	calls    int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ time.Time) (port.RateDecision, error) {
	f.calls++
	return f.decision, f.err
}

func newRateLimitTestRouter(t *testing.T, limiter port.RateLimiter) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(limiter, zaptest.NewLogger(t)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimitAllows(t *testing.T) {
	limiter := &fakeLimiter{decision: port.RateDecision{Allowed: true, Remaining: 4}}
	r := newRateLimitTestRouter(t, limiter)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	if limiter.calls != 1 {
		t.Fatalf("limiter called %d times", limiter.calls)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("remaining header %q", got)
	}
}

func TestRateLimitDeniesWithRetryAfter(t *testing.T) {
	limiter := &fakeLimiter{decision: port.RateDecision{
		Allowed:    false,
		RetryAfter: 90 * time.Second,
		Reset:      time.Now().Add(90 * time.Second),
	}}
	r := newRateLimitTestRouter(t, limiter)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("retry-after header %q", got)
	}
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	r := newRateLimitTestRouter(t, limiter)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/login", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 on limiter outage", w.Code)
	}
}

func TestRateLimitSkipsWhenUnconfigured(t *testing.T) {
	r := newRateLimitTestRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/login", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
}
