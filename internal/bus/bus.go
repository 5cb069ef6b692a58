// Package bus implements the negotiation event bus: a thread-safe
// publish/subscribe router with delayed dispatch for actions that should
// appear to take time (agent "thinking", staged replies).
//
// Dispatch is synchronous and in subscription order. A handler failure is
// logged and swallowed so one faulty subscriber cannot block delivery to
// the rest. Delayed events sit in a min-heap keyed by absolute fire time;
// a background poller (Start) or a cooperative caller (ProcessDelayed)
// drains it — both modes produce the same final state for the same event
// sequence, modulo jitter of at most the poll interval.
package bus

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-sim/parley/internal/event"
)

// PollInterval bounds the latency of delayed dispatch in background mode.
const PollInterval = 50 * time.Millisecond

// Handler processes one event. A returned error is logged, never
// propagated to the publisher.
type Handler func(event.Event) error

type subscription struct {
	id      string
	handler Handler
	types   map[event.Type]bool // nil = all types
}

func (s *subscription) matches(t event.Type) bool {
	return s.types == nil || s.types[t]
}

type delayedEvent struct {
	fireAt time.Time
	seq    uint64 // insertion order, breaks fire-time ties
	ev     event.Event
}

type delayHeap []delayedEvent

func (h delayHeap) Len() int { return len(h) }
func (h delayHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}
func (h delayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x any)   { *h = append(*h, x.(delayedEvent)) }
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Bus routes events to subscribers. Each negotiation owns its own Bus;
// there is no process-wide instance.
type Bus struct {
	subMu sync.Mutex
	subs  []*subscription

	delayMu sync.Mutex
	delayed delayHeap
	seq     uint64

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler under subscriberID for the given event
// types (none = all). Subscribing twice with the same ID replaces the
// prior subscription, so re-registration never causes duplicate delivery.
func (b *Bus) Subscribe(subscriberID string, h Handler, types ...event.Type) {
	var typeSet map[event.Type]bool
	if len(types) > 0 {
		typeSet = make(map[event.Type]bool, len(types))
		for _, t := range types {
			typeSet[t] = true
		}
	}
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.removeLocked(subscriberID)
	b.subs = append(b.subs, &subscription{id: subscriberID, handler: h, types: typeSet})
}

// Unsubscribe removes the subscription registered under subscriberID.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.removeLocked(subscriberID)
}

func (b *Bus) removeLocked(subscriberID string) {
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.id != subscriberID {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Publish routes an event. Zero delay dispatches synchronously to all
// matching subscribers; a positive DelayMS enqueues the event to fire at
// now + delay.
func (b *Bus) Publish(ev event.Event) {
	if ev.DelayMS > 0 {
		b.enqueueDelayed(ev)
		return
	}
	b.dispatch(ev)
}

// PublishAll publishes events in list order. Relative ordering between
// two zero-delay events in one call is preserved; ordering between a
// zero-delay and a delayed event follows only from the delay itself.
func (b *Bus) PublishAll(events []event.Event) {
	for _, ev := range events {
		b.Publish(ev)
	}
}

func (b *Bus) enqueueDelayed(ev event.Event) {
	fireAt := time.Now().Add(time.Duration(ev.DelayMS) * time.Millisecond)
	b.delayMu.Lock()
	b.seq++
	heap.Push(&b.delayed, delayedEvent{fireAt: fireAt, seq: b.seq, ev: ev})
	b.delayMu.Unlock()
}

// dispatch delivers ev to every matching subscriber in subscription
// order. Handlers run outside the subscription lock.
func (b *Bus) dispatch(ev event.Event) {
	b.subMu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.subMu.Unlock()

	for _, s := range subs {
		if !s.matches(ev.Type) {
			continue
		}
		b.invoke(s, ev)
	}
}

func (b *Bus) invoke(s *subscription, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[BUS] subscriber panicked", "subscriber", s.id, "type", ev.Type, "panic", r)
		}
	}()
	if err := s.handler(ev); err != nil {
		slog.Error("[BUS] subscriber failed", "subscriber", s.id, "type", ev.Type, "error", err)
	}
}

// ProcessDelayed dispatches every delayed event whose fire time has
// elapsed, in fire-time order (ties by insertion order), and returns
// them. Callers without a background poller drive dispatch through this.
func (b *Bus) ProcessDelayed() []event.Event {
	now := time.Now()
	var due []event.Event

	b.delayMu.Lock()
	for len(b.delayed) > 0 && !b.delayed[0].fireAt.After(now) {
		de := heap.Pop(&b.delayed).(delayedEvent)
		due = append(due, de.ev)
	}
	b.delayMu.Unlock()

	for _, ev := range due {
		b.dispatch(ev)
	}
	return due
}

// NextDelay returns the time until the next delayed event fires.
// ok is false when nothing is pending.
func (b *Bus) NextDelay() (time.Duration, bool) {
	b.delayMu.Lock()
	defer b.delayMu.Unlock()
	if len(b.delayed) == 0 {
		return 0, false
	}
	d := time.Until(b.delayed[0].fireAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// HasPendingDelayed reports whether any delayed events are queued.
func (b *Bus) HasPendingDelayed() bool {
	b.delayMu.Lock()
	defer b.delayMu.Unlock()
	return len(b.delayed) > 0
}

// ClearDelayed drops all pending delayed events and returns the count.
func (b *Bus) ClearDelayed() int {
	b.delayMu.Lock()
	defer b.delayMu.Unlock()
	n := len(b.delayed)
	b.delayed = nil
	return n
}

// Start launches the background delay poller. onFired, if non-nil, is
// called after each delayed event has been dispatched. Start is a no-op
// when the poller is already running.
func (b *Bus) Start(onFired func(event.Event)) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.stopCh != nil {
		return
	}
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	go b.pollLoop(b.stopCh, b.doneCh, onFired)
}

// Stop halts the background poller and waits for it to exit. Pending
// delayed events stay queued.
func (b *Bus) Stop() {
	b.runMu.Lock()
	stopCh, doneCh := b.stopCh, b.doneCh
	b.stopCh, b.doneCh = nil, nil
	b.runMu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (b *Bus) pollLoop(stopCh <-chan struct{}, doneCh chan<- struct{}, onFired func(event.Event)) {
	defer close(doneCh)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			for _, ev := range b.ProcessDelayed() {
				if onFired == nil {
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("[BUS] onFired callback panicked", "type", ev.Type, "panic", r)
						}
					}()
					onFired(ev)
				}()
			}
		}
	}
}
