package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance dedup time deterministically.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(window time.Duration) (*dedupCache, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newDedupCache(window)
	c.now = clock.now
	return c, clock
}

func TestSeenSuppressesWithinWindow(t *testing.T) {
	c, clock := newTestCache(5 * time.Second)

	assert.False(t, c.Seen("publish:new-message:m1"), "first sighting must not be suppressed")

	clock.advance(2 * time.Second)
	assert.True(t, c.Seen("publish:new-message:m1"), "second sighting within the window must be suppressed")
}

func TestSeenAllowsAfterWindow(t *testing.T) {
	c, clock := newTestCache(5 * time.Second)

	c.Seen("buzz:t1/alice")
	clock.advance(6 * time.Second)

	assert.False(t, c.Seen("buzz:t1/alice"), "a sighting after the window is a fresh event")
}

func TestDistinctKeysDoNotInterfere(t *testing.T) {
	c, _ := newTestCache(5 * time.Second)

	c.Seen("publish:new-message:m1")
	assert.False(t, c.Seen("publish:new-message:m2"))
}

func TestStaleEntriesEvictedOpportunistically(t *testing.T) {
	c, clock := newTestCache(5 * time.Second)

	c.Seen("a")
	c.Seen("b")
	clock.advance(dedupMaxAge + time.Second)

	// Any call sweeps expired entries.
	c.Seen("c")
	assert.Equal(t, 1, c.Len())
}

func TestCacheSizeIsBounded(t *testing.T) {
	c, clock := newTestCache(5 * time.Second)

	for i := 0; i < dedupMaxEntries+50; i++ {
		c.Seen(fmt.Sprintf("key-%d", i))
		clock.advance(time.Millisecond)
	}

	assert.LessOrEqual(t, c.Len(), dedupMaxEntries)
}
