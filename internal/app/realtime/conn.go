/*
Package realtime: connection wrapper.

This file defines the Conn struct, the server-side handle for one live
bidirectional channel. A Conn owns a bounded outbound queue drained by
WritePump; senders never block on a slow or dead connection.
*/
package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"teamwire/internal/pkg/logx"
)

// sendQueueSize bounds the per-connection outbound buffer.
const sendQueueSize = 256

// Socket abstracts the underlying transport so the subsystem can be tested
// without a real WebSocket.
type Socket interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Ping() error
	Close() error
}

// Conn represents one live connection belonging to one authenticated user.
type Conn struct {
	// ID is the unique connection identifier, assigned at the handshake.
	ID string

	// UserID is the owning user, established at the authentication handshake.
	UserID string

	// CreatedAt records when the connection was accepted.
	CreatedAt time.Time

	sock Socket

	// send queues outbound events for WritePump.
	send chan Event

	closeOnce sync.Once
	closed    chan struct{}

	logger zerolog.Logger
}

// NewConn wraps a transport socket as a managed connection.
func NewConn(id, userID string, sock Socket) *Conn {
	connLogger := logx.Logger().With().
		Str("conn_id", id).
		Str("user_id", userID).
		Logger()

	return &Conn{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
		sock:      sock,
		send:      make(chan Event, sendQueueSize),
		closed:    make(chan struct{}),
		logger:    connLogger,
	}
}

// TrySend queues an event without blocking. A full queue or a closed
// connection drops the event and reports false; the caller treats this as a
// transient delivery failure, never as a hard error.
func (c *Conn) TrySend(ev Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		c.logger.Warn().
			Str("event", ev.Name).
			Int("queue_len", len(c.send)).
			Msg("Connection send queue full, dropping event")
		return false
	}
}

// ReadEvent blocks until the next inbound event arrives or the transport fails.
func (c *Conn) ReadEvent() (Event, error) {
	var ev Event
	err := c.sock.ReadJSON(&ev)
	return ev, err
}

// WritePump drains the send queue onto the transport and emits a periodic
// ping to keep idle connections alive. It terminates on the first write
// failure or when the connection is closed.
func (c *Conn) WritePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.sock.WriteJSON(ev); err != nil {
				c.logger.Warn().Err(err).Str("event", ev.Name).Msg("Error writing event")
				return
			}

		case <-ticker.C:
			if err := c.sock.Ping(); err != nil {
				c.logger.Info().Err(err).Msg("Heartbeat ping failed")
				return
			}

		case <-c.closed:
			return
		}
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.sock.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Socket close error")
		}
	})
}

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
