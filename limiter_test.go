package pubcms

import (
	"testing"
	"time"
)

func TestWriteLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewWriteLimiter(0.001, 2, time.Minute)
	defer limiter.Stop()
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first write to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second write to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third write to be blocked")
	}
}

func TestWriteLimiterRefills(t *testing.T) {
	limiter := NewWriteLimiter(20, 1, time.Minute)
	defer limiter.Stop()
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first write to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second write to be blocked")
	}

	time.Sleep(100 * time.Millisecond)
	if !limiter.Allow(ip) {
		t.Fatalf("expected write after refill to be allowed")
	}
}

func TestWriteLimiterIsPerIP(t *testing.T) {
	limiter := NewWriteLimiter(0.001, 1, time.Minute)
	defer limiter.Stop()

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after burst")
	}
}

func TestWriteLimiterDropsIdleVisitors(t *testing.T) {
	limiter := NewWriteLimiter(1, 1, 50*time.Millisecond)
	defer limiter.Stop()

	limiter.Allow("203.0.113.40")
	if limiter.Len() != 1 {
		t.Fatalf("expected one tracked visitor, got %d", limiter.Len())
	}
	time.Sleep(200 * time.Millisecond)
	if n := limiter.Len(); n != 0 {
		t.Fatalf("expected idle visitor to be dropped, got %d", n)
	}
}
