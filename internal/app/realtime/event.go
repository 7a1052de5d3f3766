/*
Package realtime contains the core logic of the presence, broadcast, and
interrupt-delivery subsystem: the connection registry, the topic router, the
delivery state machine, the reaction ledger, and the interrupt signal.

This file defines the wire-level event envelope and the payload types
exchanged with clients. Event names are part of the protocol and must not
change.
*/
package realtime

import (
	"encoding/json"
	"fmt"
)

// Wire-level event names.
const (
	// EventRegister announces a user's presence on a fresh connection.
	EventRegister = "register"

	// EventUnregister is a graceful sign-off for one connection.
	EventUnregister = "unregister"

	// EventJoin subscribes the connection to a shared topic.
	EventJoin = "join"

	// EventLeave removes the connection from a shared topic.
	EventLeave = "leave"

	// EventNewMessage carries a freshly accepted chat message.
	EventNewMessage = "publish:new-message"

	// EventStatusUpdate carries a delivery-status transition back to the
	// message's original sender.
	EventStatusUpdate = "message:status-updated"

	// EventMessagesRead is the inbound batch request marking messages read.
	EventMessagesRead = "messages:read"

	// EventReactionAdd and EventReactionRemove are the inbound reaction toggles.
	EventReactionAdd    = "reaction:add"
	EventReactionRemove = "reaction:remove"

	// EventReactionUpdate republishes a message's full reaction tuple set.
	EventReactionUpdate = "reaction:update"

	// EventBuzz delivers an interrupt signal to a recipient.
	EventBuzz = "buzz"

	// EventBuzzSend is the outbound interrupt request; the server answers it
	// synchronously with an event of the same name carrying the ack id.
	EventBuzzSend = "buzz:send"

	// EventUsersOnline broadcasts the full presence snapshot.
	EventUsersOnline = "users-online"
)

// Event is the envelope for everything that crosses a connection.
type Event struct {
	// Name identifies the event type (see the constants above).
	Name string `json:"event"`

	// Data is the event payload, left raw so intermediate layers never
	// deserialize payloads they do not own.
	Data json.RawMessage `json:"data,omitempty"`

	// AckID correlates a request event with its synchronous acknowledgement.
	AckID string `json:"ackId,omitempty"`
}

// NewEvent builds an Event with the payload marshaled into Data.
func NewEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", name, err)
	}

	return Event{Name: name, Data: data}, nil
}

// UsersOnlinePayload is the presence snapshot broadcast.
type UsersOnlinePayload struct {
	Users []string `json:"users"`
}

// TopicPayload is the inbound payload of join/leave requests.
type TopicPayload struct {
	TopicID string `json:"topicId"`
}

// ReadPayload is the inbound payload of a messages:read batch request.
type ReadPayload struct {
	MessageIDs []string `json:"messageIds"`
}

// SendPayload is the inbound payload of a publish:new-message request.
// Exactly one of TopicID and ReceiverID must be set.
type SendPayload struct {
	TopicID    string `json:"topicId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
	Content    string `json:"content"`
}

// ReactionTogglePayload is the inbound payload of reaction:add / reaction:remove.
type ReactionTogglePayload struct {
	MessageID   string `json:"messageId"`
	Emoji       string `json:"emoji"`
	DisplayName string `json:"displayName,omitempty"`
}
