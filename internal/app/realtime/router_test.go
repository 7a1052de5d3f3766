package realtime

import (
	"testing"
)

func TestPublishToEmptyTopicIsSilentNoop(t *testing.T) {
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)

	ev, _ := NewEvent(EventNewMessage, map[string]string{"id": "m1"})
	if delivered := rt.Publish("nobody-here", ev); delivered != 0 {
		t.Fatalf("expected zero deliveries to an empty topic, got %d", delivered)
	}
}

func TestPublishReachesOnlyJoinedConnections(t *testing.T) {
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)

	member, memberSock := newTestConn(t, "c1", "alice")
	outsider, outsiderSock := newTestConn(t, "c2", "bob")
	reg.Register("alice", member)
	reg.Register("bob", outsider)

	rt.Join(member, "team-42")

	ev, _ := NewEvent(EventNewMessage, map[string]string{"id": "m1"})
	if delivered := rt.Publish("team-42", ev); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	waitNamed(t, memberSock, EventNewMessage, 1)
	settle()
	if got := len(outsiderSock.named(EventNewMessage)); got != 0 {
		t.Errorf("unjoined connection must not receive topic events, got %d", got)
	}
}

func TestPublishToUserFansOutToAllDevices(t *testing.T) {
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)

	phone, phoneSock := newTestConn(t, "c1", "alice")
	laptop, laptopSock := newTestConn(t, "c2", "alice")
	reg.Register("alice", phone)
	reg.Register("alice", laptop)

	ev, _ := NewEvent(EventBuzz, BuzzPayload{SenderID: "bob"})
	if !rt.PublishToUser("alice", ev) {
		t.Fatal("expected delivery to at least one device")
	}

	waitNamed(t, phoneSock, EventBuzz, 1)
	waitNamed(t, laptopSock, EventBuzz, 1)
}

func TestPublishToOfflineUserReportsUndelivered(t *testing.T) {
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)

	ev, _ := NewEvent(EventBuzz, BuzzPayload{SenderID: "bob"})
	if rt.PublishToUser("nobody", ev) {
		t.Error("publish to an offline user must report undelivered")
	}
}

func TestLeaveAllDropsMembership(t *testing.T) {
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)

	conn, sock := newTestConn(t, "c1", "alice")
	reg.Register("alice", conn)
	rt.Join(conn, "team-1")
	rt.Join(conn, "team-2")

	rt.LeaveAll("c1")

	ev, _ := NewEvent(EventNewMessage, map[string]string{"id": "m1"})
	rt.Publish("team-1", ev)
	rt.Publish("team-2", ev)
	settle()

	if got := len(sock.named(EventNewMessage)); got != 0 {
		t.Errorf("connection left all topics but received %d events", got)
	}
}

func TestMemberUsersDeduplicatesDevices(t *testing.T) {
	reg := NewRegistry(testGrace)
	rt := NewRouter(reg)

	phone, _ := newTestConn(t, "c1", "alice")
	laptop, _ := newTestConn(t, "c2", "alice")
	rt.Join(phone, "team-1")
	rt.Join(laptop, "team-1")

	users := rt.MemberUsers("team-1")
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("expected [alice], got %v", users)
	}
}
