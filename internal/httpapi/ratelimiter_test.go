package httpapi

import (
	"testing"
	"time"
)

func TestSlidingWindowLimiter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(time.Minute, 2, func() time.Time { return now })

	//1.- Two calls fit the window, the third waits for the first to expire.
	if ok, _ := limiter.Allow("a"); !ok {
		t.Fatal("expected first call to be allowed")
	}
	now = now.Add(10 * time.Second)
	if ok, _ := limiter.Allow("a"); !ok {
		t.Fatal("expected second call to be allowed")
	}
	ok, retry := limiter.Allow("a")
	if ok {
		t.Fatal("expected third call to be denied")
	}
	if retry != 50*time.Second {
		t.Fatalf("expected retry after 50s, got %v", retry)
	}

	//2.- Other clients keep their own window.
	if ok, _ := limiter.Allow("b"); !ok {
		t.Fatal("expected another client to be allowed")
	}
	if got := limiter.Clients(); got != 2 {
		t.Fatalf("expected two active clients, got %d", got)
	}

	now = now.Add(51 * time.Second)
	if ok, _ := limiter.Allow("a"); !ok {
		t.Fatal("expected limiter to permit call after window passes")
	}
}

func TestSlidingWindowLimiterDisabled(t *testing.T) {
	if ok, _ := NewSlidingWindowLimiter(0, 0, nil).Allow("a"); !ok {
		t.Fatal("limiter with zero configuration should allow")
	}
	var limiter *SlidingWindowLimiter
	if ok, _ := limiter.Allow("a"); !ok {
		t.Fatal("nil limiter should allow")
	}
}
