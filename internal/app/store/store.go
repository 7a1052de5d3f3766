/*
Package store defines the persistence boundary for messages.

The real-time subsystem never owns message history; it only needs to fetch a
message, replace its reaction list, and append readers to its seen list. The
MessageStore interface captures exactly that surface, with a Postgres
implementation for production and an in-memory one for tests and development.
*/
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an operation references an unknown message id.
var ErrNotFound = errors.New("message not found")

// Reaction is one (emoji, user) tuple attached to a message.
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`

	// DisplayName is the reacting user's display name, carried for rendering.
	DisplayName string `json:"displayName,omitempty"`
}

// Message is the subset of a chat message this subsystem reads and mutates.
// A message either belongs to a shared topic (TopicID set) or is a direct
// message (ReceiverID set); exactly one of the two is non-empty.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	TopicID    string     `json:"topicId,omitempty"`
	ReceiverID string     `json:"receiverId,omitempty"`
	Content    string     `json:"content"`
	SeenBy     []string   `json:"seenBy"`
	Reactions  []Reaction `json:"reactions"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// HasSeen reports whether readerID is already in the message's seen list.
func (m *Message) HasSeen(readerID string) bool {
	for _, id := range m.SeenBy {
		if id == readerID {
			return true
		}
	}
	return false
}

// MessageStore is the persistence boundary used by the delivery state
// machine and the reaction ledger.
type MessageStore interface {
	// Create persists a new message record.
	Create(ctx context.Context, msg *Message) error

	// Get fetches a message by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Message, error)

	// ReplaceReactions overwrites the full reaction tuple set of a message.
	ReplaceReactions(ctx context.Context, id string, reactions []Reaction) error

	// AppendSeen adds readerID to a message's seen list if not already
	// present and reports whether it actually appended. Implementations
	// make the check-and-append atomic, so exactly one concurrent caller
	// observes true.
	AppendSeen(ctx context.Context, id string, readerID string) (bool, error)
}
