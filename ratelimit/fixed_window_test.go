package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l, mr
}

func TestFixedWindowLimiter(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()
	if !l.Allow(ctx, "ip-1") || !l.Allow(ctx, "ip-1") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow(ctx, "ip-2") {
		t.Fatalf("other keys have their own budget")
	}
}

func TestFixedWindowLimiterNextWindow(t *testing.T) {
	l, _ := newLimiter(t, 1)
	now := time.Date(2024, 4, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()
	if !l.Allow(ctx, "ip-1") || l.Allow(ctx, "ip-1") {
		t.Fatalf("expected one request per window")
	}
	now = now.Add(time.Minute)
	if !l.Allow(ctx, "ip-1") {
		t.Fatalf("new window should reset the budget")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	l, mr := newLimiter(t, 5)
	mr.Close()
	if l.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error without client")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
