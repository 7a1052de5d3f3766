package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory MessageStore used by tests and development
// runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*Message
}

// NewMemoryStore returns an empty in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*Message),
	}
}

// Create persists a new message record.
func (s *MemoryStore) Create(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneMessage(msg)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.messages[cp.ID] = cp
	return nil
}

// Get fetches a message by id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessage(msg), nil
}

// ReplaceReactions overwrites the full reaction tuple set of a message.
func (s *MemoryStore) ReplaceReactions(ctx context.Context, id string, reactions []Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Reactions = append([]Reaction(nil), reactions...)
	return nil
}

// AppendSeen adds readerID to a message's seen list if not already present
// and reports whether it appended.
func (s *MemoryStore) AppendSeen(ctx context.Context, id string, readerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return false, ErrNotFound
	}
	if msg.HasSeen(readerID) {
		return false, nil
	}
	msg.SeenBy = append(msg.SeenBy, readerID)
	return true, nil
}

// cloneMessage copies a message so callers never share slices with the store.
func cloneMessage(m *Message) *Message {
	cp := *m
	cp.SeenBy = append([]string(nil), m.SeenBy...)
	cp.Reactions = append([]Reaction(nil), m.Reactions...)
	return &cp
}
