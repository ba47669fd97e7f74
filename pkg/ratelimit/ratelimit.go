// Package ratelimit implements a keyed sliding window rate limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures a Limiter.
type Config struct {
	// Max is the maximum number of events allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
}

// Result is the outcome of Limiter.Allow.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is the end of the current window.
	ResetAt time.Time
}

// entry tracks event counts across two adjacent windows for the sliding
// window algorithm.
type entry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// Limiter limits events per key. The zero value is not usable; use New.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Max returns the configured events per window.
func (l *Limiter) Max() int { return l.cfg.Max }

// Allow records an event for key at now if it fits in the limit.
func (l *Limiter) Allow(key string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{currStart: now}
		l.entries[key] = e
	}

	// Rotate window if the current window has elapsed.
	if now.Sub(e.currStart) >= l.cfg.Window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(l.cfg.Window)
		// If even the previous window is stale, zero it out.
		if now.Sub(e.prevStart) >= 2*l.cfg.Window {
			e.prevCount = 0
		}
	}

	// Weight the previous window by its overlap with the sliding window.
	elapsed := now.Sub(e.currStart)
	overlap := max(1.0-elapsed.Seconds()/l.cfg.Window.Seconds(), 0)
	effective := e.prevCount*overlap + e.currCount
	resetAt := e.currStart.Add(l.cfg.Window)

	if effective >= float64(l.cfg.Max) {
		return Result{ResetAt: resetAt}
	}

	e.currCount++
	effective++

	return Result{
		Allowed:   true,
		Remaining: max(int(float64(l.cfg.Max)-effective), 0),
		ResetAt:   resetAt,
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cleanup removes keys whose windows have fully expired.
func (l *Limiter) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.Sub(e.currStart) >= 2*l.cfg.Window {
			delete(l.entries, key)
		}
	}
}

// RunCleanup evicts expired keys every two windows until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context) {
	if l.cfg.Window <= 0 {
		return
	}
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Cleanup(now)
		}
	}
}
