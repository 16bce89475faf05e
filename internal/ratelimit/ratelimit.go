// Package ratelimit provides the token buckets that keep a single sweep tick
// from exceeding external platform quotas. Buckets are keyed by
// platform+owner so one noisy owner cannot starve another.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a set of token buckets keyed by string. Each bucket refills
// continuously at its configured per-minute rate and holds at most one
// minute's worth of tokens.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clock   func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// New creates a Limiter using the real clock.
func New() *Limiter {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Limiter with an injected clock, for tests.
func NewWithClock(clock func() time.Time) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		clock:   clock,
	}
}

// Key builds the canonical bucket key for a platform and owner.
func Key(platform, ownerID string) string {
	return platform + ":" + ownerID
}

// Allow consumes one token from the bucket if available. ratePerMin <= 0
// means unlimited.
func (l *Limiter) Allow(key string, ratePerMin int) bool {
	if ratePerMin <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(ratePerMin), last: now}
		l.buckets[key] = b
	}

	// Refill for elapsed time, capped at one minute's budget.
	elapsed := now.Sub(b.last).Minutes()
	if elapsed > 0 {
		b.tokens += elapsed * float64(ratePerMin)
		if b.tokens > float64(ratePerMin) {
			b.tokens = float64(ratePerMin)
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Retry reports how long until the bucket will next have a token. Returns 0
// when a token is already available.
func (l *Limiter) Retry(key string, ratePerMin int) time.Duration {
	if ratePerMin <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.tokens >= 1 {
		return 0
	}
	missing := 1 - b.tokens
	return time.Duration(missing / float64(ratePerMin) * float64(time.Minute))
}
