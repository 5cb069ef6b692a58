package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parley-sim/parley/internal/bus"
	"github.com/parley-sim/parley/internal/event"
)

// collect subscribes a recording handler for the given types and
// returns an accessor.
func collect(b *bus.Bus, types ...event.Type) func() []event.Event {
	var mu sync.Mutex
	var events []event.Event
	b.Subscribe("test_collector", func(ev event.Event) error {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		return nil
	}, types...)
	return func() []event.Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]event.Event, len(events))
		copy(out, events)
		return out
	}
}

// --- clock ---

func TestScheduler_ElapsedAndRemaining(t *testing.T) {
	b := bus.New()
	s := New(b, 5000, 10)

	if s.Elapsed() != 0 {
		t.Error("elapsed should be 0 before Start")
	}
	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if s.Elapsed() <= 0 {
		t.Error("elapsed should grow after Start")
	}
	r, ok := s.Remaining()
	if !ok || r <= 0 || r > 10 {
		t.Errorf("remaining = %v ok=%v, want within (0,10]", r, ok)
	}
	if s.TimedOut() {
		t.Error("should not be timed out yet")
	}
}

func TestScheduler_NoDeadline(t *testing.T) {
	b := bus.New()
	s := New(b, 5000, 0)
	if _, ok := s.Remaining(); ok {
		t.Error("remaining should report ok=false without a deadline")
	}
	if s.TimedOut() {
		t.Error("no deadline means never timed out")
	}
}

// --- TIME ticks ---

func TestScheduler_EmitsTimeTicks(t *testing.T) {
	b := bus.New()
	got := collect(b, event.TypeTime)
	s := New(b, 100, 0) // tick every 100ms
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(got()) < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	ticks := got()
	if len(ticks) < 2 {
		t.Fatalf("got %d ticks, want at least 2", len(ticks))
	}
	first := ticks[0]
	if first.SenderID != event.SenderSystem {
		t.Errorf("tick sender = %q, want system", first.SenderID)
	}
	if first.Payload.ElapsedSeconds == nil {
		t.Fatal("tick must carry elapsed seconds")
	}
	if first.Payload.RemainingSeconds != nil {
		t.Error("tick must carry nil remaining when there is no deadline")
	}
}

// --- timeout ---

func TestScheduler_TimeoutPublishesGameEndOnce(t *testing.T) {
	// the deadline produces exactly one GAME_END{timeout} and the loop
	// stops, so no TIME tick can follow it
	b := bus.New()
	ends := collect(b, event.TypeGameEnd)
	var timeoutCalls atomic.Int32

	s := New(b, 50, 0)
	s.SetDeadline(1) // 1 second
	s.OnTimeout(func() { timeoutCalls.Add(1) })
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for len(ends()) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	// give a restarted-loop bug time to double-fire
	time.Sleep(150 * time.Millisecond)

	got := ends()
	if len(got) != 1 {
		t.Fatalf("got %d GAME_END events, want exactly 1", len(got))
	}
	if got[0].Payload.Reason != "timeout" {
		t.Errorf("reason = %q, want timeout", got[0].Payload.Reason)
	}
	if timeoutCalls.Load() != 1 {
		t.Errorf("timeout callback ran %d times, want 1", timeoutCalls.Load())
	}
}

// --- scheduled actions ---

func TestScheduler_ScheduleAction(t *testing.T) {
	b := bus.New()
	s := New(b, 5000, 0)
	s.Start()
	defer s.Stop()

	var fired atomic.Bool
	s.ScheduleAction(60*time.Millisecond, func() { fired.Store(true) }, "")

	if fired.Load() {
		t.Fatal("action fired immediately")
	}
	deadline := time.Now().Add(2 * time.Second)
	for !fired.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !fired.Load() {
		t.Fatal("action never fired")
	}
}

func TestScheduler_CancelAction(t *testing.T) {
	b := bus.New()
	s := New(b, 5000, 0)

	var fired atomic.Bool
	id := s.ScheduleAction(50*time.Millisecond, func() { fired.Store(true) }, "doomed")
	if id != "doomed" {
		t.Errorf("id = %q, want the explicit id back", id)
	}
	if !s.CancelAction("doomed") {
		t.Error("cancel should find the pending action")
	}
	if s.CancelAction("doomed") {
		t.Error("second cancel should find nothing")
	}

	s.Start()
	defer s.Stop()
	time.Sleep(150 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled action still fired")
	}
}

func TestScheduler_PanickingActionDoesNotStopOthers(t *testing.T) {
	b := bus.New()
	s := New(b, 5000, 0)
	s.Start()
	defer s.Stop()

	var fired atomic.Bool
	s.ScheduleAction(10*time.Millisecond, func() { panic("boom") }, "")
	s.ScheduleAction(20*time.Millisecond, func() { fired.Store(true) }, "")

	deadline := time.Now().Add(2 * time.Second)
	for !fired.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !fired.Load() {
		t.Fatal("second action never fired after the first panicked")
	}
}

func TestScheduler_CancelAllAndPending(t *testing.T) {
	b := bus.New()
	s := New(b, 5000, 0)
	s.ScheduleAction(time.Hour, func() {}, "")
	s.ScheduleAction(time.Hour, func() {}, "")
	if s.PendingActions() != 2 {
		t.Errorf("pending = %d, want 2", s.PendingActions())
	}
	if n := s.CancelAllActions(); n != 2 {
		t.Errorf("cancelled = %d, want 2", n)
	}
	if s.PendingActions() != 0 {
		t.Error("actions remain after CancelAllActions")
	}
}
