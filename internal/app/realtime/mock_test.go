package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// mockSocket implements Socket for tests without a real WebSocket.
type mockSocket struct {
	mu       sync.Mutex
	events   []Event
	closed   bool
	closedCh chan struct{}
}

func newMockSocket() *mockSocket {
	return &mockSocket{closedCh: make(chan struct{})}
}

func (m *mockSocket) WriteJSON(v any) error {
	ev, ok := v.(Event)
	if !ok {
		return errors.New("unexpected write type")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("socket closed")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockSocket) ReadJSON(v any) error {
	<-m.closedCh
	return errors.New("socket closed")
}

func (m *mockSocket) Ping() error { return nil }

func (m *mockSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

// named returns the received events carrying the given event name.
func (m *mockSocket) named(name string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// newTestConn builds a registered-but-unattached connection whose WritePump
// drains into the mock socket.
func newTestConn(t *testing.T, connID, userID string) (*Conn, *mockSocket) {
	t.Helper()
	sock := newMockSocket()
	conn := NewConn(connID, userID, sock)
	go conn.WritePump(time.Hour)
	t.Cleanup(conn.Close)
	return conn, sock
}

// waitNamed polls until the socket has received at least n events with the
// given name, or fails the test after one second.
func waitNamed(t *testing.T, sock *mockSocket, name string, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if evs := sock.named(name); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	evs := sock.named(name)
	t.Fatalf("expected at least %d %q events, got %d", n, name, len(evs))
	return evs
}

// settle gives the write pumps a moment to drain pending events.
func settle() {
	time.Sleep(50 * time.Millisecond)
}
