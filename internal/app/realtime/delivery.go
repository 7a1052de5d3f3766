/*
Package realtime: delivery state machine.

This file advances a message through Sent → Delivered → Read and republishes
each transition to the original sender's private topic. Statuses are derived,
broadcast-only projections computed at publish time; there is no per-recipient
receipt ledger and no redelivery queue.
*/
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"teamwire/internal/app/store"
	"teamwire/internal/pkg/logx"
)

// Status is a message delivery state. Transitions are monotonic.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// StatusPayload is the message:status-updated event payload.
type StatusPayload struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`

	// ReaderID identifies who read the message; set only for StatusRead.
	ReaderID string `json:"readerId,omitempty"`
}

// Delivery is the producer/consumer layered on the router that owns message
// delivery and its status transitions.
type Delivery struct {
	store  store.MessageStore
	router *Router
	logger zerolog.Logger
}

// NewDelivery constructs the delivery state machine.
func NewDelivery(st store.MessageStore, router *Router) *Delivery {
	return &Delivery{
		store:  st,
		router: router,
		logger: logx.Logger().With().Str("component", "Delivery").Logger(),
	}
}

// Send accepts a message, persists it, fans it out, and acknowledges the
// sender. Sent is published as soon as the router accepts the message;
// Delivered follows iff at least one recipient connection existed at publish
// time. An offline recipient leaves the status at Sent; redelivery on
// reconnect is the business layer's job.
func (d *Delivery) Send(ctx context.Context, msg *store.Message) error {
	if msg.SenderID == "" {
		return fmt.Errorf("message has no sender")
	}
	if (msg.TopicID == "") == (msg.ReceiverID == "") {
		return fmt.Errorf("message needs exactly one of topic or receiver")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := d.store.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist message %s: %w", msg.ID, err)
	}

	ev, err := NewEvent(EventNewMessage, msg)
	if err != nil {
		return err
	}

	var delivered bool
	if msg.TopicID != "" {
		d.router.Publish(msg.TopicID, ev)
		delivered = d.topicReachedSomeone(msg.TopicID, msg.SenderID)
	} else {
		delivered = d.router.PublishToUser(msg.ReceiverID, ev)
	}

	d.publishStatus(msg.SenderID, msg.ID, StatusSent, "")
	if delivered {
		d.publishStatus(msg.SenderID, msg.ID, StatusDelivered, "")
	}

	return nil
}

// topicReachedSomeone reports whether the topic had at least one joined
// member other than the sender at publish time.
func (d *Delivery) topicReachedSomeone(topicID, senderID string) bool {
	for _, userID := range d.router.MemberUsers(topicID) {
		if userID != senderID {
			return true
		}
	}
	return false
}

// MarkRead appends readerID to the seen list of every message in the batch
// and publishes one Read transition per newly-read message to the original
// sender's private topic. The broadcast is gated on the store's atomic
// append, so concurrent batches for the same reader broadcast at most once
// per message and the batch stays idempotent.
func (d *Delivery) MarkRead(ctx context.Context, readerID string, messageIDs []string) error {
	for _, id := range messageIDs {
		msg, err := d.store.Get(ctx, id)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("message_id", id).
				Str("reader_id", readerID).
				Msg("Skipping unknown message in read batch")
			continue
		}

		appended, err := d.store.AppendSeen(ctx, id, readerID)
		if err != nil {
			d.logger.Error().Err(err).
				Str("message_id", id).
				Msg("Failed to record reader")
			continue
		}
		if !appended {
			continue
		}

		d.publishStatus(msg.SenderID, id, StatusRead, readerID)
	}

	return nil
}

// publishStatus pushes a status transition to the sender's private topic.
// A failed push is a transient delivery failure: logged, never raised.
func (d *Delivery) publishStatus(senderID, messageID string, status Status, readerID string) {
	ev, err := NewEvent(EventStatusUpdate, StatusPayload{
		MessageID: messageID,
		Status:    status,
		ReaderID:  readerID,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to build status event")
		return
	}

	if !d.router.PublishToUser(senderID, ev) {
		d.logger.Debug().
			Str("sender_id", senderID).
			Str("message_id", messageID).
			Str("status", string(status)).
			Msg("Sender offline, status update not delivered")
	}
}
