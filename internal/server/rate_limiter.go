package server

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-key counter guarding the trigger
// endpoints. A limit <= 0 disables limiting.
type rateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		items:  make(map[string]*rateLimitEntry),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if r.limit <= 0 {
		return true
	}
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[key]
	if entry == nil || now.Sub(entry.windowStart) > r.window {
		entry = &rateLimitEntry{windowStart: now}
		r.items[key] = entry
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	r.prune(now)
	return true
}

// prune drops entries two windows stale. Trigger callers are a handful of
// cron jobs, so the map stays small; this just stops it growing unbounded.
func (r *rateLimiter) prune(now time.Time) {
	if len(r.items) < 1024 {
		return
	}
	for key, entry := range r.items {
		if now.Sub(entry.windowStart) > 2*r.window {
			delete(r.items, key)
		}
	}
}
