package client

import (
	"sync"

	"teamwire/internal/app/realtime"
)

// Hooks are the local side-effect entry points the host UI/shell implements.
// The session decides when to call them; it never decides how they render.
type Hooks interface {
	// ShowLocalAlert surfaces a sound/toast/desktop alert for the target
	// conversation or user.
	ShowLocalAlert(title, body, target string)

	// ForceVisibility brings the client window to the foreground.
	ForceVisibility()
}

// NopHooks discards all side effects. Useful for headless sessions and tests.
type NopHooks struct{}

func (NopHooks) ShowLocalAlert(title, body, target string) {}
func (NopHooks) ForceVisibility()                          {}

// notifier applies the suppression policy for local side effects.
//
// Passive notifications alert only if the event did not originate from the
// current user AND (the user is not viewing the related conversation OR the
// window lacks focus). Interrupts bypass the policy entirely.
type notifier struct {
	mu          sync.Mutex
	hooks       Hooks
	selfID      string
	activeTopic string
	focused     bool
}

func newNotifier(selfID string, hooks Hooks) *notifier {
	return &notifier{
		hooks:  hooks,
		selfID: selfID,
	}
}

func (n *notifier) setActiveTopic(topicID string) {
	n.mu.Lock()
	n.activeTopic = topicID
	n.mu.Unlock()
}

func (n *notifier) setFocused(focused bool) {
	n.mu.Lock()
	n.focused = focused
	n.mu.Unlock()
}

// passive surfaces an ordinary notification, subject to the suppression policy.
func (n *notifier) passive(senderID, target, title, body string) {
	if senderID == n.selfID {
		return
	}

	n.mu.Lock()
	viewing := n.focused && n.activeTopic != "" && n.activeTopic == target
	n.mu.Unlock()

	if viewing {
		return
	}

	n.hooks.ShowLocalAlert(title, body, target)
}

// interrupt surfaces a buzz: always audible, always forces visibility,
// regardless of mute state or focus.
func (n *notifier) interrupt(p realtime.BuzzPayload) {
	target := p.TopicID
	if target == "" {
		target = p.SenderID
	}

	title := "Buzz from " + p.SenderID
	body := p.Message
	if body == "" {
		body = "wants your attention"
	}

	n.hooks.ShowLocalAlert(title, body, target)
	n.hooks.ForceVisibility()
}
