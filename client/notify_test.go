package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"teamwire/internal/app/realtime"
)

// recordingHooks captures side-effect invocations for assertions.
type recordingHooks struct {
	mu     sync.Mutex
	alerts []string
	forced int
}

func (h *recordingHooks) ShowLocalAlert(title, body, target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, title+"|"+target)
}

func (h *recordingHooks) ForceVisibility() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forced++
}

func (h *recordingHooks) alertCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.alerts)
}

func (h *recordingHooks) forcedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forced
}

func TestPassiveAlertSuppressedForSelf(t *testing.T) {
	hooks := &recordingHooks{}
	n := newNotifier("alice", hooks)

	n.passive("alice", "team-1", "New message", "hi")
	assert.Zero(t, hooks.alertCount(), "self-originated events never alert")
}

func TestPassiveAlertSuppressedWhenViewingFocused(t *testing.T) {
	hooks := &recordingHooks{}
	n := newNotifier("alice", hooks)
	n.setActiveTopic("team-1")
	n.setFocused(true)

	n.passive("bob", "team-1", "New message", "hi")
	assert.Zero(t, hooks.alertCount(), "viewing the conversation in a focused window suppresses the alert")
}

func TestPassiveAlertShownWhenUnfocused(t *testing.T) {
	hooks := &recordingHooks{}
	n := newNotifier("alice", hooks)
	n.setActiveTopic("team-1")
	n.setFocused(false)

	n.passive("bob", "team-1", "New message", "hi")
	assert.Equal(t, 1, hooks.alertCount(), "an unfocused window alerts even for the active conversation")
}

func TestPassiveAlertShownForOtherConversation(t *testing.T) {
	hooks := &recordingHooks{}
	n := newNotifier("alice", hooks)
	n.setActiveTopic("team-1")
	n.setFocused(true)

	n.passive("bob", "team-2", "New message", "hi")
	assert.Equal(t, 1, hooks.alertCount())
}

func TestInterruptBypassesSuppression(t *testing.T) {
	hooks := &recordingHooks{}
	n := newNotifier("alice", hooks)
	n.setActiveTopic("team-1")
	n.setFocused(true)

	n.interrupt(realtime.BuzzPayload{SenderID: "bob", TopicID: "team-1", Message: "standup"})

	assert.Equal(t, 1, hooks.alertCount(), "interrupts always alert")
	assert.Equal(t, 1, hooks.forcedCount(), "interrupts always force visibility")
}
