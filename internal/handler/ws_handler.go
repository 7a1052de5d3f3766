/*
Package handler provides the HTTP handlers and routing setup for the Teamwire server.

This file contains the WebSocket upgrade handler and the per-connection
inbound event loop. The user identity is established once, from the JWT
presented at the handshake; every subsequent event on the connection is
attributed to that user.
*/
package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"teamwire/internal/app/realtime"
	"teamwire/internal/app/store"
	"teamwire/internal/pkg/auth/jwt"
	"teamwire/internal/pkg/errs"
	"teamwire/internal/pkg/limiter"
	"teamwire/internal/pkg/logx"
	"teamwire/internal/pkg/resp"
)

const (
	// writeWait is the timeout for a single write to the WebSocket.
	writeWait = 10 * time.Second

	// pongWait is the maximum silence tolerated before a connection is
	// considered dead. Clients answer the server's pings well within it.
	pongWait = 60 * time.Second

	// pingPeriod is the server-side ping interval; must be below pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxEventSize bounds a single inbound event frame.
	maxEventSize = 16384

	// maxContentBytes bounds message content length.
	maxContentBytes = 5000

	// dispatchTimeout bounds store-touching work triggered by one event.
	dispatchTimeout = 10 * time.Second
)

// pingInterval selects the server-side ping period: the configured heartbeat
// interval when it fits under the pong deadline, the derived default
// otherwise. A ping period at or above pongWait would let healthy
// connections miss the liveness deadline.
func pingInterval(configured time.Duration) time.Duration {
	if configured <= 0 || configured >= pongWait {
		return pingPeriod
	}
	return configured
}

// wsSocket adapts a gorilla WebSocket connection to the realtime.Socket
// interface, owning all deadline handling.
type wsSocket struct {
	conn *websocket.Conn
}

func newWsSocket(conn *websocket.Conn) *wsSocket {
	conn.SetReadLimit(maxEventSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsSocket{conn: conn}
}

func (s *wsSocket) WriteJSON(v any) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *wsSocket) ReadJSON(v any) error {
	// Any complete read counts as liveness, not just pongs.
	if err := s.conn.ReadJSON(v); err != nil {
		return err
	}
	return s.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (s *wsSocket) Ping() error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}

// HandleWebSocket creates the HandlerFunc that upgrades the connection,
// registers it, and runs its inbound event loop until disconnect.
func HandleWebSocket(upgrader websocket.Upgrader, connectLimiter *limiter.KeyLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !connectLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil || payload.UserID == "" {
			logx.Warn("WebSocket connection rejected: Invalid identity token.")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := realtime.NewConn(uuid.NewString(), payload.UserID, newWsSocket(wsConn))
		go conn.WritePump(pingInterval(deps.Config.HeartbeatInterval))

		// The private topic is joined implicitly here: registering the
		// connection makes it resolvable by every publishToUser call.
		deps.Registry.Register(conn.UserID, conn)

		logx.Info("WebSocket connection established",
			"user_id", conn.UserID, "conn_id", conn.ID)

		session := &connSession{
			conn: conn,
			deps: deps,
			logger: logx.Logger().With().
				Str("conn_id", conn.ID).
				Str("user_id", conn.UserID).
				Logger(),
		}
		session.readLoop()
	}
}

// connSession runs the inbound side of one live connection.
type connSession struct {
	conn   *realtime.Conn
	deps   *AppDeps
	logger zerolog.Logger
}

// readLoop consumes inbound events until the transport fails or the client
// signs off, then tears the connection down.
func (s *connSession) readLoop() {
	defer s.teardown()

	for {
		ev, err := s.conn.ReadEvent()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Connection read ended unexpectedly")
			}
			return
		}

		if done := s.dispatch(ev); done {
			return
		}
	}
}

// teardown removes every trace of the connection: topic memberships first,
// then the registry entry (which arms the pending-offline timer).
func (s *connSession) teardown() {
	s.deps.Router.LeaveAll(s.conn.ID)
	s.deps.Registry.Unregister(s.conn.UserID, s.conn.ID)
	s.conn.Close()
	s.logger.Info().Msg("Connection cleaned up")
}

// dispatch routes one inbound event. Returns true when the loop should end.
func (s *connSession) dispatch(ev realtime.Event) bool {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch ev.Name {
	case realtime.EventRegister:
		// Presence is already established at the handshake; a client-side
		// register after reconnect is an idempotent re-affirmation.
		s.deps.Registry.Register(s.conn.UserID, s.conn)

	case realtime.EventUnregister:
		return true

	case realtime.EventJoin:
		var p realtime.TopicPayload
		if !s.decode(ev, &p) || p.TopicID == "" {
			return false
		}
		s.deps.Router.Join(s.conn, p.TopicID)

	case realtime.EventLeave:
		var p realtime.TopicPayload
		if !s.decode(ev, &p) || p.TopicID == "" {
			return false
		}
		s.deps.Router.Leave(s.conn.ID, p.TopicID)

	case realtime.EventNewMessage:
		s.handleSend(ctx, ev)

	case realtime.EventMessagesRead:
		var p realtime.ReadPayload
		if !s.decode(ev, &p) {
			return false
		}
		if err := s.deps.Delivery.MarkRead(ctx, s.conn.UserID, p.MessageIDs); err != nil {
			s.logger.Error().Err(err).Msg("Read batch failed")
		}

	case realtime.EventReactionAdd, realtime.EventReactionRemove:
		s.handleReaction(ctx, ev)

	case realtime.EventBuzzSend:
		s.handleBuzz(ev)

	default:
		s.logger.Warn().Str("event", ev.Name).Msg("Client sent unsupported event")
	}

	return false
}

func (s *connSession) handleSend(ctx context.Context, ev realtime.Event) {
	var p realtime.SendPayload
	if !s.decode(ev, &p) {
		return
	}

	if len(p.Content) > maxContentBytes {
		s.logger.Warn().Int("content_len", len(p.Content)).Msg("Message content too long, dropped")
		return
	}

	msg := &store.Message{
		SenderID:   s.conn.UserID,
		TopicID:    p.TopicID,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
	}
	if err := s.deps.Delivery.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Msg("Message send failed")
	}
}

func (s *connSession) handleReaction(ctx context.Context, ev realtime.Event) {
	var p realtime.ReactionTogglePayload
	if !s.decode(ev, &p) {
		return
	}

	var err error
	if ev.Name == realtime.EventReactionAdd {
		_, err = s.deps.Reactions.Add(ctx, p.MessageID, p.Emoji, s.conn.UserID, p.DisplayName)
	} else {
		_, err = s.deps.Reactions.Remove(ctx, p.MessageID, p.Emoji, s.conn.UserID)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("message_id", p.MessageID).Msg("Reaction toggle failed")
	}
}

// handleBuzz answers a buzz:send request synchronously on the same
// connection, echoing the request's ack id.
func (s *connSession) handleBuzz(ev realtime.Event) {
	var p realtime.BuzzRequest
	result := realtime.Result{OK: false, Reason: realtime.ReasonBadRequest}
	if s.decode(ev, &p) {
		result = s.deps.Buzzer.Request(s.conn.UserID, p.Target, p.Message)
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode buzz acknowledgement")
		return
	}

	ack := realtime.Event{Name: realtime.EventBuzzSend, Data: data, AckID: ev.AckID}
	if !s.conn.TrySend(ack) {
		s.logger.Warn().Msg("Failed to queue buzz acknowledgement")
	}
}

// decode unmarshals an event payload, logging and rejecting malformed input.
func (s *connSession) decode(ev realtime.Event, v any) bool {
	if len(ev.Data) == 0 {
		s.logger.Warn().Str("event", ev.Name).Msg("Client sent event without payload")
		return false
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		s.logger.Warn().Err(err).Str("event", ev.Name).Msg("Client sent invalid payload")
		return false
	}
	return true
}
