package realtime

import (
	"context"
	"errors"
	"testing"

	"teamwire/internal/app/store"
)

func newLedgerFixture(t *testing.T) (*Ledger, *store.MemoryStore, *Router, *Registry) {
	t.Helper()
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)
	st := store.NewMemoryStore()
	return NewLedger(st, rt), st, rt, reg
}

func seedMessage(t *testing.T, st *store.MemoryStore, msg *store.Message) {
	t.Helper()
	if err := st.Create(context.Background(), msg); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestAddReactionIsIdempotent(t *testing.T) {
	l, st, _, _ := newLedgerFixture(t)
	seedMessage(t, st, &store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"})

	set, err := l.Add(context.Background(), "m1", "👍", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Fatalf("expected 1 tuple, got %d", len(set))
	}

	set, err = l.Add(context.Background(), "m1", "👍", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Errorf("duplicate add must not grow the set, got %d tuples", len(set))
	}
}

func TestRemoveAbsentReactionReturnsUnchangedSet(t *testing.T) {
	l, st, _, _ := newLedgerFixture(t)
	seedMessage(t, st, &store.Message{
		ID: "m1", SenderID: "alice", ReceiverID: "bob",
		Reactions: []store.Reaction{{Emoji: "🎉", UserID: "alice"}},
	})

	set, err := l.Remove(context.Background(), "m1", "👍", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 || set[0].Emoji != "🎉" {
		t.Errorf("removing an absent tuple must return the unchanged set, got %v", set)
	}
}

func TestAddThenRemoveRoundTrip(t *testing.T) {
	l, st, _, _ := newLedgerFixture(t)
	seedMessage(t, st, &store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"})

	if _, err := l.Add(context.Background(), "m1", "👍", "bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	set, err := l.Remove(context.Background(), "m1", "👍", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set after remove, got %v", set)
	}
}

func TestReactionOnUnknownMessage(t *testing.T) {
	l, _, _, _ := newLedgerFixture(t)

	_, err := l.Add(context.Background(), "ghost", "👍", "bob", "Bob")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReactionRepublishesFullSetToTopic(t *testing.T) {
	l, st, rt, reg := newLedgerFixture(t)
	seedMessage(t, st, &store.Message{ID: "m1", SenderID: "alice", TopicID: "team-1"})

	member, sock := newTestConn(t, "c1", "carol")
	reg.Register("carol", member)
	rt.Join(member, "team-1")

	if _, err := l.Add(context.Background(), "m1", "👍", "bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Add(context.Background(), "m1", "🎉", "carol", "Carol"); err != nil {
		t.Fatal(err)
	}

	evs := waitNamed(t, sock, EventReactionUpdate, 2)
	if len(evs) != 2 {
		t.Fatalf("expected one full-set republish per mutation, got %d", len(evs))
	}
}

func TestDirectMessageReactionReachesBothParticipants(t *testing.T) {
	l, st, _, reg := newLedgerFixture(t)
	seedMessage(t, st, &store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"})

	sender, senderSock := newTestConn(t, "c1", "alice")
	receiver, receiverSock := newTestConn(t, "c2", "bob")
	reg.Register("alice", sender)
	reg.Register("bob", receiver)

	if _, err := l.Add(context.Background(), "m1", "👍", "bob", "Bob"); err != nil {
		t.Fatal(err)
	}

	waitNamed(t, senderSock, EventReactionUpdate, 1)
	waitNamed(t, receiverSock, EventReactionUpdate, 1)
}
