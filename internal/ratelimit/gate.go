// Package ratelimit implements per-source-key admission control used to
// protect connection establishment and message sends from abuse.
package ratelimit

import (
	"sync"
	"time"
)

// Gate counts admissions per key over a fixed window. The (limit+1)-th
// request inside a window is rejected with the time remaining until the
// window resets; the first request after reset is admitted again.
//
// Separate Gate instances must be used for connection attempts and for
// message sends so the two cannot starve each other.
type Gate struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[string]*windowEntry

	lastSweep time.Time

	now func() time.Time // injectable for tests
}

type windowEntry struct {
	start time.Time
	count int
}

// NewGate creates a Gate admitting at most limit requests per key per
// window. Non-positive arguments fall back to 1 request per second.
func NewGate(limit int, window time.Duration) *Gate {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Gate{
		window:  window,
		limit:   limit,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Admit records an admission attempt for key. It returns whether the
// attempt is allowed and, when it is not, how long the caller should
// wait before retrying.
func (g *Gate) Admit(key string) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)

	e, ok := g.entries[key]
	if !ok || now.Sub(e.start) >= g.window {
		g.entries[key] = &windowEntry{start: now, count: 1}
		return true, 0
	}

	if e.count < g.limit {
		e.count++
		return true, 0
	}

	return false, e.start.Add(g.window).Sub(now)
}

// sweep drops windows that expired before the current one, at most once
// per window so the map cannot grow without bound. Caller holds g.mu.
func (g *Gate) sweep(now time.Time) {
	if now.Sub(g.lastSweep) < g.window {
		return
	}
	g.lastSweep = now
	for key, e := range g.entries {
		if now.Sub(e.start) >= g.window {
			delete(g.entries, key)
		}
	}
}
