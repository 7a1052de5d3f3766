package client

import (
	"sync"
	"time"
)

const (
	// dedupMaxAge is how long an entry survives before opportunistic eviction.
	dedupMaxAge = 60 * time.Second

	// dedupMaxEntries bounds the cache; oldest entries go first when exceeded.
	dedupMaxEntries = 1024
)

// dedupCache suppresses redundant side effects for events that arrive more
// than once within a short window. It is a heuristic, not a correctness
// guarantee: a rare duplicate costs one extra sound.
type dedupCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

func newDedupCache(window time.Duration) *dedupCache {
	return &dedupCache{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen reports whether key was recorded within the dedup window, and records
// the current sighting either way. Stale entries are evicted opportunistically
// on every call.
func (c *dedupCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictLocked(now)

	last, exists := c.entries[key]
	c.entries[key] = now

	return exists && now.Sub(last) < c.window
}

// evictLocked removes entries older than dedupMaxAge and enforces the size
// bound by dropping the oldest entries.
func (c *dedupCache) evictLocked(now time.Time) {
	for key, seen := range c.entries {
		if now.Sub(seen) > dedupMaxAge {
			delete(c.entries, key)
		}
	}

	for len(c.entries) >= dedupMaxEntries {
		var oldestKey string
		var oldest time.Time
		for key, seen := range c.entries {
			if oldestKey == "" || seen.Before(oldest) {
				oldestKey = key
				oldest = seen
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Len reports the current number of cached entries.
func (c *dedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
