// Package ratelimit implements a window counter on the shared key-value store
// so every instance enforces the same budget.
package ratelimit

import (
	"context"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	RetryAfter time.Duration
}

// Limiter allows at most limit hits per key per window.
// The counter and its TTL are set in one atomic store call, so concurrent
// hits from the same key are never undercounted.
type Limiter struct {
	kv     repository.KV
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// New creates a limiter. scope namespaces the keys, e.g. "ingest" or "killswitch".
func New(kv repository.KV, scope string, limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{kv: kv, scope: scope, limit: limit, window: window, now: time.Now}
}

// WithClock replaces the clock used to compute Retry-After
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow counts a hit for key
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, expiresAt, err := l.kv.IncrBy(ctx, repository.RateLimitKey(l.scope, key), 1, l.window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: count <= int64(l.limit), Count: count, Limit: l.limit}
	if !d.Allowed {
		d.RetryAfter = l.window
		if !expiresAt.IsZero() {
			d.RetryAfter = expiresAt.Sub(l.now())
		}
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

// RetryAfterSeconds rounds up for the Retry-After header
func (d Decision) RetryAfterSeconds() int {
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
