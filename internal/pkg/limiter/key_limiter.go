/*
Package limiter provides per-key concurrency rate limiting.

It utilizes the Token Bucket algorithm (rate.Limiter) to control the request
frequency for an arbitrary string key (a sender id for interrupt signals, a
client IP for connection upgrades) and includes a cleanup goroutine that
periodically removes idle limiters to prevent memory leaks.
*/
package limiter

import (
	"sync"
	"time"

	"teamwire/internal/pkg/logx"

	"golang.org/x/time/rate"
)

// cleanupInterval is how often idle limiter entries are swept.
const cleanupInterval = 3 * time.Minute

// KeyLimiter implements a token-bucket rate limiter per string key.
type KeyLimiter struct {
	// mu protects concurrent access to the limits map.
	mu sync.RWMutex

	// limits maps a key to its *rate.Limiter instance, created lazily.
	limits map[string]*rate.Limiter

	// r is the refill rate, defining the number of events allowed per second.
	r rate.Limit

	// b is the burst size (token bucket capacity).
	b int

	// done stops the cleanup goroutine.
	done chan struct{}

	// stopOnce guards the done channel against a double Stop.
	stopOnce sync.Once
}

// NewKeyLimiter creates a KeyLimiter with refill rate r and burst capacity b,
// and starts a background goroutine to sweep idle entries.
func NewKeyLimiter(r rate.Limit, b int) *KeyLimiter {
	k := &KeyLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		done:   make(chan struct{}),
	}

	go k.cleanupLoop()

	return k
}

// NewWindowLimiter creates a KeyLimiter that allows at most n events per
// rolling window per key. The bucket holds n tokens and refills at n/window,
// so a burst of n is admitted and the (n+1)th within the window is rejected.
func NewWindowLimiter(n int, window time.Duration) *KeyLimiter {
	return NewKeyLimiter(rate.Limit(float64(n)/window.Seconds()), n)
}

// Allow reports whether one event for the given key may proceed now.
func (k *KeyLimiter) Allow(key string) bool {
	return k.limiterFor(key).Allow()
}

// limiterFor retrieves the rate limiter for a key, creating one on first use.
// Double-checked locking keeps creation concurrent-safe without serializing
// the hot read path.
func (k *KeyLimiter) limiterFor(key string) *rate.Limiter {
	k.mu.RLock()
	lim, exists := k.limits[key]
	k.mu.RUnlock()

	if !exists {
		k.mu.Lock()
		lim, exists = k.limits[key]
		if !exists {
			lim = rate.NewLimiter(k.r, k.b)
			k.limits[key] = lim
		}
		k.mu.Unlock()
	}

	return lim
}

// cleanupLoop periodically removes limiters whose buckets are full again.
// A full bucket means the key has been idle for at least one whole window,
// so its state carries no information and can be rebuilt lazily.
func (k *KeyLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.sweep()
		case <-k.done:
			return
		}
	}
}

// sweep removes all idle limiter entries.
func (k *KeyLimiter) sweep() {
	k.mu.Lock()
	count := 0
	now := time.Now()
	for key, lim := range k.limits {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(k.limits, key)
			count++
		}
	}
	remaining := len(k.limits)
	k.mu.Unlock()

	if count > 0 {
		logx.Info("Rate limiter cleanup finished.", "removed", count, "remaining", remaining)
	}
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (k *KeyLimiter) Stop() {
	k.stopOnce.Do(func() {
		close(k.done)
	})
}
