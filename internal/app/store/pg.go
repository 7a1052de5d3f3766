package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teamwire/internal/app/db"
)

// PgStore is the Postgres-backed MessageStore implementation.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps a pgx connection pool as a MessageStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Create persists a new message record.
func (s *PgStore) Create(ctx context.Context, msg *Message) error {
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, topic_id, receiver_id, content, seen_by, reactions)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`,
		msg.ID, msg.SenderID, msg.TopicID, msg.ReceiverID, msg.Content, msg.SeenBy, reactions,
	)
	if err != nil {
		// A replayed insert of the same id is a client retry, not a failure.
		if db.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
	}
	return nil
}

// Get fetches a message by id, or ErrNotFound.
func (s *PgStore) Get(ctx context.Context, id string) (*Message, error) {
	msg := &Message{}
	var topicID, receiverID *string
	var reactions []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, topic_id, receiver_id, content, seen_by, reactions, created_at
		FROM messages WHERE id = $1`, id,
	).Scan(&msg.ID, &msg.SenderID, &topicID, &receiverID, &msg.Content, &msg.SeenBy, &reactions, &msg.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}

	if topicID != nil {
		msg.TopicID = *topicID
	}
	if receiverID != nil {
		msg.ReceiverID = *receiverID
	}
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("failed to decode reactions for message %s: %w", id, err)
		}
	}

	return msg, nil
}

// ReplaceReactions overwrites the full reaction tuple set of a message.
// Full-set replace mirrors the ledger's republish semantics; concurrent
// writers on the same message may lose one toggle.
func (s *PgStore) ReplaceReactions(ctx context.Context, id string, reactions []Reaction) error {
	encoded, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET reactions = $2 WHERE id = $1`, id, encoded)
	if err != nil {
		return fmt.Errorf("failed to update reactions for message %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendSeen adds readerID to a message's seen list and reports whether it
// appended. The containment check runs inside the UPDATE, so exactly one of
// any set of concurrent markers observes true.
func (s *PgStore) AppendSeen(ctx context.Context, id string, readerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET seen_by = array_append(seen_by, $2)
		WHERE id = $1 AND NOT (seen_by @> ARRAY[$2]::text[])`,
		id, readerID)
	if err != nil {
		return false, fmt.Errorf("failed to append reader to message %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// No row updated: either already seen or the message is unknown.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check message %s: %w", id, err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
