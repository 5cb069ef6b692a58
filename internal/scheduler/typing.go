package scheduler

import (
	"sync"
	"time"

	"github.com/parley-sim/parley/internal/bus"
	"github.com/parley-sim/parley/internal/event"
)

// TypingIndicator manages the "typing..." signal: it publishes an
// OFFER_IN_PROGRESS event when the agent starts composing and hides
// again when the agent's next action lands (or after an auto-hide
// timer).
type TypingIndicator struct {
	bus      *bus.Bus
	senderID string

	mu        sync.Mutex
	showing   bool
	hideTimer *time.Timer
}

// NewTypingIndicator creates an indicator publishing on b as senderID.
func NewTypingIndicator(b *bus.Bus, senderID string) *TypingIndicator {
	if senderID == "" {
		senderID = event.SenderAgent
	}
	return &TypingIndicator{bus: b, senderID: senderID}
}

// Show publishes the indicator. autoHide of 0 keeps it up until Hide is
// called. Showing while already visible is a no-op.
func (t *TypingIndicator) Show(autoHide time.Duration) {
	t.mu.Lock()
	if t.showing {
		t.mu.Unlock()
		return
	}
	t.showing = true
	if autoHide > 0 {
		if t.hideTimer != nil {
			t.hideTimer.Stop()
		}
		t.hideTimer = time.AfterFunc(autoHide, t.Hide)
	}
	t.mu.Unlock()

	t.bus.Publish(event.NewOfferInProgress(t.senderID, nil))
}

// Hide clears the indicator and cancels any pending auto-hide.
func (t *TypingIndicator) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hideTimer != nil {
		t.hideTimer.Stop()
		t.hideTimer = nil
	}
	t.showing = false
}

// IsShowing reports whether the indicator is currently up.
func (t *TypingIndicator) IsShowing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.showing
}
