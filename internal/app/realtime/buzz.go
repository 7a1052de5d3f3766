/*
Package realtime: interrupt signal ("buzz").

A buzz is a rate-limited, synchronously acknowledged attention request. It is
materially higher priority than an ordinary notification: on receipt a client
must interrupt locally (sound plus forced visibility), even for muted users.
*/
package realtime

import (
	"github.com/rs/zerolog"

	"teamwire/internal/pkg/limiter"
	"teamwire/internal/pkg/logx"
)

// Rejection reasons carried in the synchronous buzz acknowledgement.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonBadRequest   = "bad_request"
	ReasonRateLimited  = "rate_limited"
)

// Target addresses an interrupt at either one user or one shared topic.
type Target struct {
	UserID  string `json:"userId,omitempty"`
	TopicID string `json:"topicId,omitempty"`
}

// BuzzRequest is the inbound buzz:send payload.
type BuzzRequest struct {
	Target  Target `json:"target"`
	Message string `json:"message,omitempty"`
}

// Result is the synchronous acknowledgement returned to the requester.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// BuzzPayload is the interrupt event delivered to each recipient.
type BuzzPayload struct {
	SenderID string `json:"senderId"`
	TopicID  string `json:"topicId,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Buzzer validates, rate-limits, and fans out interrupt signals.
type Buzzer struct {
	limiter  *limiter.KeyLimiter
	router   *Router
	registry *Registry
	logger   zerolog.Logger
}

// NewBuzzer constructs the interrupt-signal component. The limiter caps each
// sender's interrupts per rolling window.
func NewBuzzer(lim *limiter.KeyLimiter, router *Router, registry *Registry) *Buzzer {
	return &Buzzer{
		limiter:  lim,
		router:   router,
		registry: registry,
		logger:   logx.Logger().With().Str("component", "Buzzer").Logger(),
	}
}

// Request processes one interrupt request and returns the acknowledgement the
// caller blocks for. Validation order: identity, target shape, rate limit.
// The sender is always excluded from the resolved recipient set; an empty set
// acknowledges success without publishing.
func (b *Buzzer) Request(senderID string, target Target, message string) Result {
	if senderID == "" {
		return Result{OK: false, Reason: ReasonUnauthorized}
	}

	if target.UserID == "" && target.TopicID == "" {
		return Result{OK: false, Reason: ReasonBadRequest}
	}

	if !b.limiter.Allow(senderID) {
		b.logger.Info().Str("sender_id", senderID).Msg("Interrupt rejected by rate limiter")
		return Result{OK: false, Reason: ReasonRateLimited}
	}

	var recipients []string
	if target.UserID != "" {
		if target.UserID != senderID {
			recipients = []string{target.UserID}
		}
	} else {
		for _, userID := range b.router.MemberUsers(target.TopicID) {
			if userID != senderID {
				recipients = append(recipients, userID)
			}
		}
	}

	if len(recipients) == 0 {
		return Result{OK: true}
	}

	ev, err := NewEvent(EventBuzz, BuzzPayload{
		SenderID: senderID,
		TopicID:  target.TopicID,
		Message:  message,
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to build interrupt event")
		return Result{OK: false, Reason: ReasonBadRequest}
	}

	// Private topic first so every device of every recipient is reached,
	// then the shared topic for members actively viewing it. Clients
	// deduplicate the overlap.
	for _, userID := range recipients {
		b.router.PublishToUser(userID, ev)
	}
	if target.TopicID != "" {
		b.router.PublishExcept(target.TopicID, senderID, ev)
	}

	b.logger.Info().
		Str("sender_id", senderID).
		Int("recipients", len(recipients)).
		Msg("Interrupt delivered")

	return Result{OK: true}
}
