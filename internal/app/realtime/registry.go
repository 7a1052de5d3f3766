/*
Package realtime: connection registry.

This file defines the Registry struct, which maps user identities to their
sets of live connections and derives presence from them. A pending-offline
timer per user bridges the gap between the last disconnect and the public
"offline" announcement, so rapid reconnects never flap.
*/
package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"teamwire/internal/pkg/logx"
)

// Registry tracks which users are reachable on which connections.
//
// The users map is guarded by mu; each userEntry carries its own mutex, so
// unrelated users' registry updates proceed concurrently and only the
// map-level bookkeeping is shared.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*userEntry

	// grace is the window between the last disconnect and the public
	// offline announcement.
	grace time.Duration

	// notifyMu serializes the snapshot-compute-then-broadcast sequence so a
	// stale snapshot can never be published after a newer mutation.
	notifyMu sync.Mutex

	// onOffline, when set, observes the public offline announcement.
	onOffline func(userID string)

	logger zerolog.Logger
}

// userEntry holds one user's connection set and pending-offline state.
type userEntry struct {
	mu    sync.Mutex
	conns map[string]*Conn

	// offlineTimer is armed when the connection set empties and cancelled by
	// the next register. timerGen invalidates callbacks from superseded timers.
	offlineTimer *time.Timer
	timerGen     uint64

	// dead marks an entry removed from the registry map. A register that
	// raced the removal must fetch a fresh entry instead of mutating this one.
	dead bool
}

// NewRegistry constructs a Registry with the given offline grace window.
func NewRegistry(grace time.Duration) *Registry {
	return &Registry{
		users:  make(map[string]*userEntry),
		grace:  grace,
		logger: logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// OnOffline installs a callback invoked once per confirmed offline
// transition. Must be set before the registry receives traffic.
func (r *Registry) OnOffline(fn func(userID string)) {
	r.onOffline = fn
}

// Register adds a connection to the user's set. It is idempotent per
// (user, connection) pair and cancels any pending-offline timer for the user,
// so an in-grace reconnect never produces an offline announcement.
func (r *Registry) Register(userID string, conn *Conn) {
	e := r.entry(userID)

	e.mu.Lock()
	for e.dead {
		e.mu.Unlock()
		e = r.entry(userID)
		e.mu.Lock()
	}
	if e.offlineTimer != nil {
		e.offlineTimer.Stop()
		e.offlineTimer = nil
	}
	e.timerGen++

	if _, exists := e.conns[conn.ID]; exists {
		e.mu.Unlock()
		return
	}
	e.conns[conn.ID] = conn
	total := len(e.conns)
	e.mu.Unlock()

	r.logger.Info().
		Str("user_id", userID).
		Str("conn_id", conn.ID).
		Int("connections", total).
		Msg("Connection registered")

	r.publishSnapshot()
}

// Unregister removes exactly one connection. When the user's set becomes
// empty, the pending-offline timer is armed for the grace window.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.RLock()
	e := r.users[userID]
	r.mu.RUnlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	if _, exists := e.conns[connID]; !exists {
		e.mu.Unlock()
		return
	}
	delete(e.conns, connID)
	remaining := len(e.conns)

	if remaining == 0 {
		e.timerGen++
		gen := e.timerGen
		e.offlineTimer = time.AfterFunc(r.grace, func() {
			r.confirmOffline(userID, gen)
		})
	}
	e.mu.Unlock()

	r.logger.Info().
		Str("user_id", userID).
		Str("conn_id", connID).
		Int("connections", remaining).
		Msg("Connection unregistered")

	r.publishSnapshot()
}

// confirmOffline fires when a grace timer elapses. A register that raced the
// timer bumps timerGen, so a superseded callback is a no-op.
func (r *Registry) confirmOffline(userID string, gen uint64) {
	r.mu.RLock()
	e := r.users[userID]
	r.mu.RUnlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.timerGen != gen || len(e.conns) > 0 {
		e.mu.Unlock()
		return
	}
	e.offlineTimer = nil
	e.dead = true
	e.mu.Unlock()

	r.mu.Lock()
	delete(r.users, userID)
	r.mu.Unlock()

	r.logger.Info().Str("user_id", userID).Msg("User confirmed offline")

	if r.onOffline != nil {
		r.onOffline(userID)
	}

	r.publishSnapshot()
}

// IsOnline reports whether a user currently holds at least one live
// connection or is inside the offline grace window.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	e := r.users[userID]
	r.mu.RUnlock()
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns) > 0 || e.offlineTimer != nil
}

// Snapshot returns the sorted set of currently online user ids. Users inside
// their grace window are still reported online.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	entries := make(map[string]*userEntry, len(r.users))
	for id, e := range r.users {
		entries[id] = e
	}
	r.mu.RUnlock()

	online := make([]string, 0, len(entries))
	for id, e := range entries {
		e.mu.Lock()
		alive := len(e.conns) > 0 || e.offlineTimer != nil
		e.mu.Unlock()
		if alive {
			online = append(online, id)
		}
	}

	sort.Strings(online)
	return online
}

// ConnsFor returns all live connections registered for a user.
func (r *Registry) ConnsFor(userID string) []*Conn {
	r.mu.RLock()
	e := r.users[userID]
	r.mu.RUnlock()
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	conns := make([]*Conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

// AllConns returns every live connection across all users.
func (r *Registry) AllConns() []*Conn {
	r.mu.RLock()
	entries := make([]*userEntry, 0, len(r.users))
	for _, e := range r.users {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var conns []*Conn
	for _, e := range entries {
		e.mu.Lock()
		for _, c := range e.conns {
			conns = append(conns, c)
		}
		e.mu.Unlock()
	}
	return conns
}

// publishSnapshot broadcasts the full presence snapshot to every live
// connection. Broadcasting the whole set on every change is deliberately
// simple and fine at the target deployment size.
func (r *Registry) publishSnapshot() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	ev, err := NewEvent(EventUsersOnline, UsersOnlinePayload{Users: r.Snapshot()})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build presence snapshot event")
		return
	}

	for _, c := range r.AllConns() {
		c.TrySend(ev)
	}
}

// entry returns the userEntry for a user, creating it on first use.
func (r *Registry) entry(userID string) *userEntry {
	r.mu.RLock()
	e, exists := r.users[userID]
	r.mu.RUnlock()
	if exists {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists = r.users[userID]
	if !exists {
		e = &userEntry{conns: make(map[string]*Conn)}
		r.users[userID] = e
	}
	return e
}
