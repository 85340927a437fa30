package access

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window message limit per user.
//
// Each user owns an independent window with its own lock, so distinct users
// never contend.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewRateLimiter creates a limiter admitting at most limit messages per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
	}
}

// Allow records one message at now and reports whether the user is still
// within the limit. The message that brings the count exactly to the limit is
// allowed; the next one is rejected.
func (l *RateLimiter) Allow(userID string, now time.Time) bool {
	l.mu.Lock()
	w, ok := l.windows[userID]
	if !ok {
		w = &rateWindow{}
		l.windows[userID] = w
	}
	l.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := w.stamps[:0]
	for _, stamp := range w.stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	w.stamps = append(kept, now)

	return len(w.stamps) <= l.limit
}
