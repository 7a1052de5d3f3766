/*
Package realtime: topic router.

This file defines the Router struct, which owns shared-topic membership and
the two publish primitives. Private topics have no membership of their own:
publishing to a user resolves, at publish time, to every live connection the
registry currently holds for that user.
*/
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"teamwire/internal/pkg/logx"
)

// Router fans published events out to topic members and user connections.
type Router struct {
	mu sync.RWMutex

	// topics maps a topic id to its joined connections, keyed by conn id.
	topics map[string]map[string]*Conn

	registry *Registry
	logger   zerolog.Logger
}

// NewRouter constructs a Router over the given connection registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		topics:   make(map[string]map[string]*Conn),
		registry: registry,
		logger:   logx.Logger().With().Str("component", "Router").Logger(),
	}
}

// Join subscribes a connection to a shared topic.
func (rt *Router) Join(conn *Conn, topicID string) {
	rt.mu.Lock()
	members, exists := rt.topics[topicID]
	if !exists {
		members = make(map[string]*Conn)
		rt.topics[topicID] = members
	}
	members[conn.ID] = conn
	rt.mu.Unlock()

	rt.logger.Debug().
		Str("topic_id", topicID).
		Str("conn_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("Connection joined topic")
}

// Leave removes a connection from a shared topic. Leaving a topic the
// connection never joined is a no-op.
func (rt *Router) Leave(connID, topicID string) {
	rt.mu.Lock()
	if members, exists := rt.topics[topicID]; exists {
		delete(members, connID)
		if len(members) == 0 {
			delete(rt.topics, topicID)
		}
	}
	rt.mu.Unlock()
}

// LeaveAll removes a connection from every topic it joined. Called from the
// connection-teardown path.
func (rt *Router) LeaveAll(connID string) {
	rt.mu.Lock()
	for topicID, members := range rt.topics {
		delete(members, connID)
		if len(members) == 0 {
			delete(rt.topics, topicID)
		}
	}
	rt.mu.Unlock()
}

// Publish fans an event out to every connection currently joined to the
// topic. Publishing to a topic with zero subscribers is a silent no-op.
// The returned count is the number of connections that accepted the event.
func (rt *Router) Publish(topicID string, ev Event) int {
	return rt.publishTopic(topicID, "", ev)
}

// PublishExcept behaves like Publish but skips every connection owned by
// exceptUserID.
func (rt *Router) PublishExcept(topicID, exceptUserID string, ev Event) int {
	return rt.publishTopic(topicID, exceptUserID, ev)
}

func (rt *Router) publishTopic(topicID, exceptUserID string, ev Event) int {
	rt.mu.RLock()
	members := rt.topics[topicID]
	conns := make([]*Conn, 0, len(members))
	for _, c := range members {
		if exceptUserID != "" && c.UserID == exceptUserID {
			continue
		}
		conns = append(conns, c)
	}
	rt.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.TrySend(ev) {
			delivered++
		} else {
			rt.logger.Warn().
				Str("topic_id", topicID).
				Str("conn_id", c.ID).
				Str("event", ev.Name).
				Msg("Topic delivery dropped")
		}
	}
	return delivered
}

// PublishToUser delivers an event to every live connection of a user, which is
// the private-topic primitive. Multi-device users receive the event on every
// device. Reports whether at least one connection accepted it.
func (rt *Router) PublishToUser(userID string, ev Event) bool {
	delivered := false
	for _, c := range rt.registry.ConnsFor(userID) {
		if c.TrySend(ev) {
			delivered = true
		} else {
			rt.logger.Warn().
				Str("user_id", userID).
				Str("conn_id", c.ID).
				Str("event", ev.Name).
				Msg("Private delivery dropped")
		}
	}
	return delivered
}

// MemberUsers returns the distinct user ids currently joined to a topic.
func (rt *Router) MemberUsers(topicID string) []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, c := range rt.topics[topicID] {
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}
		users = append(users, c.UserID)
	}
	return users
}
