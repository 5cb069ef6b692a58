// Package scheduler owns wall-clock state for a negotiation: periodic
// TIME ticks, deadline expiry, and arbitrary delayed one-shot actions.
//
// One background goroutine drives tick emission, timeout detection and
// action execution. All mutation of the pending-action list happens
// under a single lock; actions themselves run outside it, each isolated
// so a panicking action cannot stop later ones. Timeout is a terminal
// transition: the loop publishes exactly one GAME_END{timeout} event and
// stops itself, so no TIME tick can follow it.
package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-sim/parley/internal/bus"
	"github.com/parley-sim/parley/internal/event"
)

const pollInterval = 50 * time.Millisecond

type scheduledAction struct {
	fireAt time.Time
	fn     func()
	id     string
}

// Scheduler emits TIME events and executes scheduled actions for one
// negotiation. Create one per session.
type Scheduler struct {
	bus          *bus.Bus
	tickInterval time.Duration

	mu           sync.Mutex
	deadline     time.Duration // 0 = no deadline
	startTime    time.Time
	actions      []scheduledAction // kept sorted by fireAt
	timeoutFired bool

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}

	onTick    func(elapsed float64, remaining *float64)
	onTimeout func()
}

// New creates a Scheduler publishing on b. tickIntervalMS controls TIME
// event cadence; deadlineSeconds of 0 means no deadline.
func New(b *bus.Bus, tickIntervalMS, deadlineSeconds int) *Scheduler {
	if tickIntervalMS <= 0 {
		tickIntervalMS = 5000
	}
	return &Scheduler{
		bus:          b,
		tickInterval: time.Duration(tickIntervalMS) * time.Millisecond,
		deadline:     time.Duration(deadlineSeconds) * time.Second,
	}
}

// SetDeadline sets or clears (0) the deadline.
func (s *Scheduler) SetDeadline(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = time.Duration(seconds) * time.Second
}

// OnTick registers a callback invoked after each TIME event.
func (s *Scheduler) OnTick(fn func(elapsed float64, remaining *float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

// OnTimeout registers a callback invoked once when the deadline expires.
func (s *Scheduler) OnTimeout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTimeout = fn
}

// Start launches the scheduler loop. No-op if already running.
func (s *Scheduler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.mu.Lock()
	s.startTime = time.Now()
	s.timeoutFired = false
	s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.runLoop(s.stopCh, s.doneCh)
}

// Stop halts the loop and waits for it to exit. Safe to call whether or
// not the loop is running (the loop stops itself on timeout).
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.runMu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Reset rebases elapsed time to zero and clears pending actions. Used
// when a new negotiation begins in the same process.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = time.Now()
	s.actions = nil
	s.timeoutFired = false
}

// Elapsed returns seconds since Start (0 before the first Start).
func (s *Scheduler) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Scheduler) elapsedLocked() float64 {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime).Seconds()
}

// Remaining returns seconds until the deadline, clamped at 0. ok is
// false when no deadline is configured.
func (s *Scheduler) Remaining() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Scheduler) remainingLocked() (float64, bool) {
	if s.deadline <= 0 {
		return 0, false
	}
	r := s.deadline.Seconds() - s.elapsedLocked()
	if r < 0 {
		r = 0
	}
	return r, true
}

// TimedOut reports whether the deadline has been exceeded.
func (s *Scheduler) TimedOut() bool {
	r, ok := s.Remaining()
	return ok && r <= 0
}

// ScheduleAction registers a one-shot callback fired at now + delay.
// An empty id gets a generated one. Returns the action id.
func (s *Scheduler) ScheduleAction(delay time.Duration, fn func(), id string) string {
	if id == "" {
		id = "action_" + uuid.NewString()[:8]
	}
	a := scheduledAction{fireAt: time.Now().Add(delay), fn: fn, id: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
	sort.SliceStable(s.actions, func(i, j int) bool {
		return s.actions[i].fireAt.Before(s.actions[j].fireAt)
	})
	return id
}

// CancelAction removes a not-yet-fired action. Reports whether it was
// found.
func (s *Scheduler) CancelAction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.actions[:0]
	found := false
	for _, a := range s.actions {
		if a.id == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	s.actions = kept
	return found
}

// CancelAllActions drops every pending action and returns the count.
func (s *Scheduler) CancelAllActions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.actions)
	s.actions = nil
	return n
}

// PendingActions returns the number of not-yet-fired actions.
func (s *Scheduler) PendingActions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

func (s *Scheduler) runLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			s.runDueActions(now)

			if now.Sub(lastTick) >= s.tickInterval {
				s.emitTimeTick()
				lastTick = now
			}

			if s.TimedOut() {
				s.handleTimeout()
				return
			}
		}
	}
}

// runDueActions pops actions whose fire time has elapsed and runs them
// in ascending fire-time order, outside the lock.
func (s *Scheduler) runDueActions(now time.Time) {
	var due []scheduledAction
	s.mu.Lock()
	for len(s.actions) > 0 && !s.actions[0].fireAt.After(now) {
		due = append(due, s.actions[0])
		s.actions = s.actions[1:]
	}
	s.mu.Unlock()

	for _, a := range due {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("[SCHED] scheduled action panicked", "action", a.id, "panic", r)
				}
			}()
			a.fn()
		}()
	}
}

func (s *Scheduler) emitTimeTick() {
	s.mu.Lock()
	elapsed := s.elapsedLocked()
	var remaining *float64
	if r, ok := s.remainingLocked(); ok {
		remaining = &r
	}
	onTick := s.onTick
	s.mu.Unlock()

	s.bus.Publish(event.NewTimeTick(elapsed, remaining))
	if onTick != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("[SCHED] tick callback panicked", "panic", r)
				}
			}()
			onTick(elapsed, remaining)
		}()
	}
}

// handleTimeout publishes GAME_END{timeout} exactly once, even if the
// scheduler is restarted without a Reset.
func (s *Scheduler) handleTimeout() {
	s.mu.Lock()
	if s.timeoutFired {
		s.mu.Unlock()
		return
	}
	s.timeoutFired = true
	onTimeout := s.onTimeout
	s.mu.Unlock()

	slog.Info("[SCHED] deadline reached")
	s.bus.Publish(event.NewGameEnd("timeout", nil))
	if onTimeout != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("[SCHED] timeout callback panicked", "panic", r)
				}
			}()
			onTimeout()
		}()
	}
}
