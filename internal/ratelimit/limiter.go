// Package ratelimit implements the process-local fixed-window limiter that
// guards link creation, authenticated API use and redirects.
//
// Counters live in memory only. A restart resets them and each instance of a
// multi-instance deployment enforces its own approximation of the limit.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired entries should be swept.
const DefaultSweepInterval = 5 * time.Minute

// Result is the outcome of a single Check.
type Result struct {
	Success   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RetryAfter returns how long the caller should wait before the window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter holds one counter per key.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates an empty Limiter.
func New(logger *slog.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger.With("component", "ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request against key under policy p.
// The read and the increment happen under one lock.
func (l *Limiter) Check(key string, p Policy) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.resetTime.Before(now) {
		e = &entry{count: 1, resetTime: now.Add(p.Window)}
		l.entries[key] = e
		return Result{Success: true, Limit: p.Max, Remaining: p.Max - 1, ResetTime: e.resetTime}
	}

	if e.count >= p.Max {
		return Result{Success: false, Limit: p.Max, Remaining: 0, ResetTime: e.resetTime}
	}

	e.count++
	return Result{Success: true, Limit: p.Max, Remaining: p.Max - e.count, ResetTime: e.resetTime}
}

// Sweep drops every entry whose window has ended and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if e.resetTime.Before(now) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SweepJob runs Sweep and logs what it removed. It is registered with the
// process scheduler.
func (l *Limiter) SweepJob() {
	if removed := l.Sweep(); removed > 0 {
		l.logger.Debug("rate_limit_sweep", "removed", removed, "remaining", l.Len())
	}
}
