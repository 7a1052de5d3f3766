package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamwire/internal/app/realtime"
)

func mustEvent(t *testing.T, name string, payload any) realtime.Event {
	t.Helper()
	ev, err := realtime.NewEvent(name, payload)
	require.NoError(t, err)
	return ev
}

func newTestSession(hooks Hooks, onEvent func(realtime.Event)) *Session {
	return NewSession(Config{
		URL:    "ws://localhost:8080/ws",
		UserID: "alice",
	}, hooks, onEvent)
}

func TestDuplicateEventStillDispatchesToUI(t *testing.T) {
	hooks := &recordingHooks{}
	var mu sync.Mutex
	dispatched := 0
	s := newTestSession(hooks, func(realtime.Event) {
		mu.Lock()
		dispatched++
		mu.Unlock()
	})

	ev := mustEvent(t, realtime.EventNewMessage, map[string]string{
		"id": "m1", "senderId": "bob", "topicId": "team-1", "content": "hi",
	})

	s.handleEvent(ev)
	s.handleEvent(ev)

	mu.Lock()
	got := dispatched
	mu.Unlock()
	assert.Equal(t, 2, got, "UI dispatch must fire for duplicates too")
	assert.Equal(t, 1, hooks.alertCount(), "side effects fire once per dedup window")
}

func TestBuzzDeliveredTwiceAlertsOnce(t *testing.T) {
	hooks := &recordingHooks{}
	s := newTestSession(hooks, nil)

	// The server publishes a topic buzz to both the private and the shared
	// topic; the client must collapse the overlap.
	ev := mustEvent(t, realtime.EventBuzz, realtime.BuzzPayload{
		SenderID: "bob", TopicID: "team-1", Message: "standup",
	})

	s.handleEvent(ev)
	s.handleEvent(ev)

	assert.Equal(t, 1, hooks.alertCount())
	assert.Equal(t, 1, hooks.forcedCount())
}

func TestBuzzAckResolvesWaiter(t *testing.T) {
	s := newTestSession(nil, nil)

	ch := make(chan realtime.Result, 1)
	s.mu.Lock()
	s.acks["ack-1"] = ch
	s.mu.Unlock()

	data, err := json.Marshal(realtime.Result{OK: false, Reason: realtime.ReasonRateLimited})
	require.NoError(t, err)
	s.handleEvent(realtime.Event{Name: realtime.EventBuzzSend, Data: data, AckID: "ack-1"})

	select {
	case result := <-ch:
		assert.False(t, result.OK)
		assert.Equal(t, realtime.ReasonRateLimited, result.Reason)
	default:
		t.Fatal("expected the ack waiter to be resolved")
	}
}

func TestDedupKeyDerivation(t *testing.T) {
	msg := mustEvent(t, realtime.EventNewMessage, map[string]string{"id": "m1"})
	key, ok := dedupKey(msg)
	require.True(t, ok)
	assert.Equal(t, "publish:new-message:m1", key)

	status := mustEvent(t, realtime.EventStatusUpdate, map[string]string{"messageId": "m2"})
	key, ok = dedupKey(status)
	require.True(t, ok)
	assert.Equal(t, "message:status-updated:m2", key)

	_, ok = dedupKey(realtime.Event{Name: realtime.EventUsersOnline})
	assert.False(t, ok, "events without a subject are never deduplicated")
}

func TestBuzzWithoutConnectionFails(t *testing.T) {
	s := newTestSession(nil, nil)

	_, err := s.Buzz(t.Context(), realtime.Target{UserID: "bob"}, "")
	assert.Error(t, err)
}

func TestRunStopsAfterBoundedRetries(t *testing.T) {
	s := NewSession(Config{
		URL:        "ws://127.0.0.1:1/ws",
		UserID:     "alice",
		RetryCount: 2,
		RetryDelay: time.Millisecond,
	}, nil, nil)

	err := s.Run(t.Context())
	require.Error(t, err, "an unreachable endpoint must exhaust the retry sequence")
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestHandshakeResetsRetrySequence(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	accepted := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepted++
		mu.Unlock()
		conn.Close()
	}))
	defer srv.Close()

	s := NewSession(Config{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		UserID:     "alice",
		RetryCount: 2,
		RetryDelay: time.Millisecond,
	}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(t.Context()) }()

	// Each accepted connection is a completed handshake, which resets the
	// attempt count. Without the reset the session would give up after
	// three connections, so clearly more than that proves it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := accepted
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 5 accepted connections, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Close()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
	case <-time.After(5 * time.Second):
		t.Fatal("session kept retrying after the endpoint went away for good")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSession(nil, nil)
	s.Close()
	s.Close()

	select {
	case <-s.closed:
	default:
		t.Fatal("closed channel must be closed")
	}
}
