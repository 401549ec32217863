// Package ratelimit provides per-phone request rate limiting for the webhook.
//
// It implements a sliding 60-second window of request timestamps, pruned lazily
// on each check. All mutation happens under a single mutex so concurrent
// webhook calls for the same phone cannot race.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the rolling window requests are counted over.
const DefaultWindow = time.Minute

// Limiter tracks request timestamps per phone within a rolling window.
type Limiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxPerWind int
	timestamps map[string][]time.Time
	now        func() time.Time
}

// NewLimiter creates a limiter allowing maxPerMinute requests per phone in any
// rolling 60-second window.
func NewLimiter(maxPerMinute int) *Limiter {
	return &Limiter{
		window:     DefaultWindow,
		maxPerWind: maxPerMinute,
		timestamps: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// Allow records a request for phone and reports whether it is within the limit.
// Entries older than the window are pruned before counting; a rejected request
// is not recorded.
func (l *Limiter) Allow(phone string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.timestamps[phone][:0]
	for _, ts := range l.timestamps[phone] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.maxPerWind {
		l.timestamps[phone] = recent
		return false
	}

	l.timestamps[phone] = append(recent, now)
	return true
}

// Count returns the number of requests recorded for phone within the window.
func (l *Limiter) Count(phone string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.timestamps[phone] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
