package httpapi

import (
	"sync"
	"time"
)

// SlidingWindowLimiter enforces a maximum number of simulate calls per client
// within a time window.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
	sweeps  int
}

// NewSlidingWindowLimiter constructs a limiter allowing up to limit calls per
// window for every client key.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if window <= 0 || limit <= 0 {
		return &SlidingWindowLimiter{window: window, limit: limit}
	}
	if timeSource == nil {
		timeSource = time.Now
	}
	return &SlidingWindowLimiter{
		window:  window,
		limit:   limit,
		now:     timeSource,
		clients: make(map[string][]time.Time),
	}
}

// Allow reports whether the client may proceed. When it may not, the returned
// duration is how long until its oldest call leaves the window.
func (l *SlidingWindowLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	events := prune(l.clients[key], cutoff)
	if len(events) >= l.limit {
		l.clients[key] = events
		return false, events[0].Sub(cutoff)
	}
	l.clients[key] = append(events, now)

	//1.- Forget idle clients every so often so the map tracks live callers only.
	l.sweeps++
	if l.sweeps >= 256 {
		l.sweeps = 0
		for client, calls := range l.clients {
			if kept := prune(calls, cutoff); len(kept) == 0 {
				delete(l.clients, client)
			} else {
				l.clients[client] = kept
			}
		}
	}
	return true, 0
}

// Clients reports how many callers currently hold calls inside the window.
func (l *SlidingWindowLimiter) Clients() int {
	if l == nil || l.clients == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	active := 0
	for _, calls := range l.clients {
		//1.- Calls are appended in order, so the newest one decides.
		if n := len(calls); n > 0 && calls[n-1].After(cutoff) {
			active++
		}
	}
	return active
}

func prune(events []time.Time, cutoff time.Time) []time.Time {
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
