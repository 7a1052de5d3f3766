package limiter

import (
	"testing"
	"time"
)

func TestWindowLimiterAllowsBurstThenRejects(t *testing.T) {
	k := NewWindowLimiter(3, time.Minute)
	defer k.Stop()

	for i := 0; i < 3; i++ {
		if !k.Allow("sender-1") {
			t.Fatalf("call %d should be allowed within burst", i+1)
		}
	}

	if k.Allow("sender-1") {
		t.Error("4th call within the window should be rejected")
	}
}

func TestWindowLimiterKeysAreIndependent(t *testing.T) {
	k := NewWindowLimiter(1, time.Minute)
	defer k.Stop()

	if !k.Allow("a") {
		t.Fatal("first call for key a should be allowed")
	}
	if k.Allow("a") {
		t.Error("second call for key a should be rejected")
	}
	if !k.Allow("b") {
		t.Error("key b must not be affected by key a's quota")
	}
}

func TestSweepRemovesIdleEntries(t *testing.T) {
	k := NewWindowLimiter(2, 10*time.Millisecond)
	defer k.Stop()

	k.Allow("idle")

	// Wait for the bucket to refill completely, then sweep.
	time.Sleep(30 * time.Millisecond)
	k.sweep()

	k.mu.RLock()
	_, exists := k.limits["idle"]
	k.mu.RUnlock()

	if exists {
		t.Error("idle entry should have been swept once its bucket refilled")
	}
}
