package session

import (
	"time"

	"github.com/parley-sim/parley/internal/event"
)

// History is the append-only ordered sequence of events in one
// negotiation. The Session owns it; everyone else reads snapshots.
type History struct {
	events []event.Event
}

// Add appends an event.
func (h *History) Add(ev event.Event) {
	h.events = append(h.events, ev)
}

// All returns a copy of every event in order.
func (h *History) All() []event.Event {
	out := make([]event.Event, len(h.events))
	copy(out, h.events)
	return out
}

// Len returns the number of recorded events.
func (h *History) Len() int { return len(h.events) }

// ByType returns all events of one type, in order.
func (h *History) ByType(t event.Type) []event.Event {
	var out []event.Event
	for _, ev := range h.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// BySender returns all events from one sender, in order.
func (h *History) BySender(senderID string) []event.Event {
	var out []event.Event
	for _, ev := range h.events {
		if ev.SenderID == senderID {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the most recent count events (fewer if history is short).
func (h *History) Last(count int) []event.Event {
	if count > len(h.events) {
		count = len(h.events)
	}
	out := make([]event.Event, count)
	copy(out, h.events[len(h.events)-count:])
	return out
}

// LastOffer returns the most recent SEND_OFFER event.
func (h *History) LastOffer() (event.Event, bool) {
	return h.lastOfferBy("")
}

// LastOfferBy returns the most recent SEND_OFFER event from senderID.
func (h *History) LastOfferBy(senderID string) (event.Event, bool) {
	return h.lastOfferBy(senderID)
}

func (h *History) lastOfferBy(senderID string) (event.Event, bool) {
	for i := len(h.events) - 1; i >= 0; i-- {
		ev := h.events[i]
		if ev.Type != event.TypeSendOffer {
			continue
		}
		if senderID != "" && ev.SenderID != senderID {
			continue
		}
		return ev, true
	}
	return event.Event{}, false
}

// Messages returns all SEND_MESSAGE events.
func (h *History) Messages() []event.Event {
	return h.ByType(event.TypeSendMessage)
}

// OfferCount returns the number of SEND_OFFER events.
func (h *History) OfferCount() int {
	return len(h.ByType(event.TypeSendOffer))
}

// OfferCountBy returns the number of SEND_OFFER events from senderID.
func (h *History) OfferCountBy(senderID string) int {
	var n int
	for _, ev := range h.events {
		if ev.Type == event.TypeSendOffer && ev.SenderID == senderID {
			n++
		}
	}
	return n
}

// SecondsSinceLastEvent returns seconds since the most recent event,
// skipping TIME ticks when excludeTime is set. ok is false when no
// qualifying event exists.
func (h *History) SecondsSinceLastEvent(excludeTime bool) (float64, bool) {
	for i := len(h.events) - 1; i >= 0; i-- {
		ev := h.events[i]
		if excludeTime && ev.Type == event.TypeTime {
			continue
		}
		now := float64(time.Now().UnixNano()) / 1e9
		return now - ev.Timestamp, true
	}
	return 0, false
}

// Clear drops all recorded events (new session only).
func (h *History) Clear() {
	h.events = nil
}
