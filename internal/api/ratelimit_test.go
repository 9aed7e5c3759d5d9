package api

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("third request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("other IPs have their own bucket")
	}
	if got := rl.RetryAfter("10.0.0.1"); got != 61 {
		t.Fatalf("RetryAfter = %d", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("window reset should allow again")
	}
}
