/*
Package client implements the consumer-side session manager for the Teamwire
real-time subsystem.

A Session owns exactly one outbound connection per process: it dials the
server, announces presence, keeps the connection alive with a periodic
heartbeat, and retries a bounded number of times after a network drop. Every
inbound event flows through a de-duplication layer before any local side
effect (sound, toast, forced focus) is triggered; UI-state dispatch always
happens so the interface stays consistent even for suppressed duplicates.
*/
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"teamwire/internal/app/realtime"
	"teamwire/internal/pkg/logx"
)

const (
	defaultHeartbeat   = 30 * time.Second
	defaultRetryCount  = 5
	defaultRetryDelay  = 3 * time.Second
	defaultDedupWindow = 5 * time.Second
	defaultAckTimeout  = 10 * time.Second

	dialTimeout = 10 * time.Second
	readWait    = 90 * time.Second
)

// Config holds the session parameters. Zero values fall back to defaults.
type Config struct {
	// URL is the WebSocket endpoint, e.g. "ws://localhost:8080/ws".
	URL string

	// Token is the identity token presented at the handshake.
	Token string

	// UserID is the current user; used to suppress self-originated alerts.
	UserID string

	HeartbeatInterval time.Duration
	RetryCount        int
	RetryDelay        time.Duration
	DedupWindow       time.Duration
	AckTimeout        time.Duration
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeat
	}
	if c.RetryCount <= 0 {
		c.RetryCount = defaultRetryCount
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = defaultDedupWindow
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = defaultAckTimeout
	}
}

// Session manages the single outbound connection of one client process.
type Session struct {
	cfg      Config
	notifier *notifier
	dedup    *dedupCache

	// onEvent is the UI-state dispatch callback, invoked for every inbound
	// event including suppressed duplicates.
	onEvent func(realtime.Event)

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	acks    map[string]chan realtime.Result

	closed    chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewSession constructs a session. hooks may be nil for headless use; onEvent
// may be nil when no UI dispatch is needed.
func NewSession(cfg Config, hooks Hooks, onEvent func(realtime.Event)) *Session {
	cfg.applyDefaults()
	if hooks == nil {
		hooks = NopHooks{}
	}
	if onEvent == nil {
		onEvent = func(realtime.Event) {}
	}

	return &Session{
		cfg:      cfg,
		notifier: newNotifier(cfg.UserID, hooks),
		dedup:    newDedupCache(cfg.DedupWindow),
		onEvent:  onEvent,
		acks:     make(map[string]chan realtime.Result),
		closed:   make(chan struct{}),
		logger:   logx.Logger().With().Str("component", "ClientSession").Logger(),
	}
}

// Run connects and serves the session until Close is called, the context is
// cancelled, or the bounded reconnection sequence is exhausted.
func (s *Session) Run(ctx context.Context) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if attempt > s.cfg.RetryCount {
				return fmt.Errorf("connection lost after %d attempts: %w", s.cfg.RetryCount, lastErr)
			}

			s.logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", s.cfg.RetryCount).
				Msg("Reconnecting after delay")

			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return nil
			case <-s.closed:
				return nil
			}
		}

		connected, err := s.connectAndServe(ctx)
		if s.stopping(ctx) {
			return nil
		}
		lastErr = err

		// A session that got as far as the handshake resets the attempt count.
		if connected {
			attempt = 0
		}
	}
}

func (s *Session) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-s.closed:
		return true
	default:
		return false
	}
}

// connectAndServe runs one connection lifetime: dial, handshake, heartbeat,
// read loop. The first return value reports whether the handshake succeeded.
func (s *Session) connectAndServe(ctx context.Context) (bool, error) {
	endpoint, err := s.endpoint()
	if err != nil {
		return false, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	// Announce presence. The server already established our identity at the
	// handshake; this re-affirms it after a reconnect.
	register, err := realtime.NewEvent(realtime.EventRegister, map[string]string{"userId": s.cfg.UserID})
	if err != nil {
		return true, err
	}
	if err := s.writeEvent(conn, register); err != nil {
		return true, fmt.Errorf("register failed: %w", err)
	}

	s.logger.Info().Str("endpoint", endpoint).Msg("Session connected")

	// Heartbeat keeps the registry entry alive through idle periods. The
	// done channel guarantees the ticker is gone before we return.
	hbDone := make(chan struct{})
	defer close(hbDone)
	go s.heartbeat(conn, hbDone)

	// Unblock the read loop when the session is shut down.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-s.closed:
		case <-watchDone:
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return true, fmt.Errorf("read failed: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		s.handleEvent(ev)
	}
}

func (s *Session) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	q := u.Query()
	q.Set("token", s.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// heartbeat pings the server on a fixed interval until done closes.
func (s *Session) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			if err != nil {
				s.logger.Debug().Err(err).Msg("Heartbeat write failed")
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Session) writeEvent(conn *websocket.Conn, ev realtime.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(ev)
}

// handleEvent processes one inbound event: ack routing, UI dispatch, dedup,
// and local side effects.
func (s *Session) handleEvent(ev realtime.Event) {
	if ev.Name == realtime.EventBuzzSend && ev.AckID != "" {
		s.resolveAck(ev)
		return
	}

	// UI-state dispatch always happens, duplicates included.
	s.onEvent(ev)

	key, ok := dedupKey(ev)
	if ok && s.dedup.Seen(key) {
		s.logger.Debug().Str("key", key).Msg("Duplicate event, side effects suppressed")
		return
	}

	switch ev.Name {
	case realtime.EventBuzz:
		var p realtime.BuzzPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed interrupt payload")
			return
		}
		s.notifier.interrupt(p)

	case realtime.EventNewMessage:
		var p struct {
			SenderID string `json:"senderId"`
			TopicID  string `json:"topicId"`
			Content  string `json:"content"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		target := p.TopicID
		if target == "" {
			target = p.SenderID
		}
		s.notifier.passive(p.SenderID, target, "New message", p.Content)
	}
}

// dedupKey derives the semantic identity of an event. Events without a
// derivable subject are never deduplicated.
func dedupKey(ev realtime.Event) (string, bool) {
	var probe struct {
		ID        string `json:"id"`
		MessageID string `json:"messageId"`
		TopicID   string `json:"topicId"`
		SenderID  string `json:"senderId"`
	}
	if len(ev.Data) == 0 || json.Unmarshal(ev.Data, &probe) != nil {
		return "", false
	}

	subject := probe.ID
	if subject == "" {
		subject = probe.MessageID
	}
	if subject == "" {
		subject = probe.TopicID + "/" + probe.SenderID
	}
	if subject == "" || subject == "/" {
		return "", false
	}
	return ev.Name + ":" + subject, true
}

func (s *Session) resolveAck(ev realtime.Event) {
	var result realtime.Result
	if err := json.Unmarshal(ev.Data, &result); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed buzz acknowledgement")
		return
	}

	s.mu.Lock()
	ch, ok := s.acks[ev.AckID]
	delete(s.acks, ev.AckID)
	s.mu.Unlock()

	if ok {
		ch <- result
	}
}

// Buzz sends an interrupt request and blocks for the server's synchronous
// acknowledgement. A rate-limited result surfaces as Result.Reason, not as
// an error.
func (s *Session) Buzz(ctx context.Context, target realtime.Target, message string) (realtime.Result, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return realtime.Result{}, fmt.Errorf("session is not connected")
	}

	ackID := uuid.NewString()
	ch := make(chan realtime.Result, 1)
	s.mu.Lock()
	s.acks[ackID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.acks, ackID)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(realtime.BuzzRequest{Target: target, Message: message})
	if err != nil {
		return realtime.Result{}, err
	}

	ev := realtime.Event{Name: realtime.EventBuzzSend, Data: data, AckID: ackID}
	if err := s.writeEvent(conn, ev); err != nil {
		return realtime.Result{}, fmt.Errorf("buzz write failed: %w", err)
	}

	select {
	case result := <-ch:
		return result, nil
	case <-time.After(s.cfg.AckTimeout):
		return realtime.Result{}, fmt.Errorf("buzz acknowledgement timed out")
	case <-ctx.Done():
		return realtime.Result{}, ctx.Err()
	case <-s.closed:
		return realtime.Result{}, fmt.Errorf("session closed")
	}
}

// SetActiveTopic records which conversation the user is currently viewing.
func (s *Session) SetActiveTopic(topicID string) {
	s.notifier.setActiveTopic(topicID)
}

// SetFocused records whether the client window currently has visibility/focus.
func (s *Session) SetFocused(focused bool) {
	s.notifier.setFocused(focused)
}

// Close tears the session down deterministically: the read loop, heartbeat
// ticker, and reconnection timers all stop. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
}
