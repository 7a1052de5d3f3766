/*
Package realtime: reaction ledger.

Idempotent add/remove of (emoji, user) tuples on a message. Every mutation
republishes the entire resulting tuple set rather than a delta: simpler, and
resilient to out-of-order delivery at the cost of payload size.
*/
package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"teamwire/internal/app/store"
	"teamwire/internal/pkg/logx"
)

// ReactionPayload is the reaction:update event payload: the full tuple set.
type ReactionPayload struct {
	MessageID string           `json:"messageId"`
	Reactions []store.Reaction `json:"reactions"`
}

// Ledger owns reaction mutations against the message store.
type Ledger struct {
	store  store.MessageStore
	router *Router
	logger zerolog.Logger
}

// NewLedger constructs the reaction ledger.
func NewLedger(st store.MessageStore, router *Router) *Ledger {
	return &Ledger{
		store:  st,
		router: router,
		logger: logx.Logger().With().Str("component", "ReactionLedger").Logger(),
	}
}

// Add records an (emoji, user) tuple on a message and returns the resulting
// tuple set. Adding a tuple that already exists returns the unchanged set
// without persisting or republishing.
func (l *Ledger) Add(ctx context.Context, messageID, emoji, userID, displayName string) ([]store.Reaction, error) {
	msg, err := l.store.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	for _, r := range msg.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			return msg.Reactions, nil
		}
	}

	updated := append(msg.Reactions, store.Reaction{
		Emoji:       emoji,
		UserID:      userID,
		DisplayName: displayName,
	})

	if err := l.store.ReplaceReactions(ctx, messageID, updated); err != nil {
		return nil, err
	}

	l.republish(msg, updated)
	return updated, nil
}

// Remove deletes an (emoji, user) tuple from a message and returns the
// resulting tuple set. Removing an absent tuple returns the unchanged set
// without persisting or republishing.
func (l *Ledger) Remove(ctx context.Context, messageID, emoji, userID string) ([]store.Reaction, error) {
	msg, err := l.store.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	updated := make([]store.Reaction, 0, len(msg.Reactions))
	found := false
	for _, r := range msg.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			found = true
			continue
		}
		updated = append(updated, r)
	}

	if !found {
		return msg.Reactions, nil
	}

	if err := l.store.ReplaceReactions(ctx, messageID, updated); err != nil {
		return nil, err
	}

	l.republish(msg, updated)
	return updated, nil
}

// republish pushes the full tuple set to the message's audience: every
// current member of its shared topic, or both participants of the direct
// message pair.
func (l *Ledger) republish(msg *store.Message, reactions []store.Reaction) {
	ev, err := NewEvent(EventReactionUpdate, ReactionPayload{
		MessageID: msg.ID,
		Reactions: reactions,
	})
	if err != nil {
		l.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to build reaction event")
		return
	}

	if msg.TopicID != "" {
		l.router.Publish(msg.TopicID, ev)
		return
	}

	l.router.PublishToUser(msg.SenderID, ev)
	l.router.PublishToUser(msg.ReceiverID, ev)
}
