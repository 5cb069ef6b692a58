package agent

import (
	"log/slog"
	"sync"
	"time"

	"github.com/parley-sim/parley/internal/bus"
	"github.com/parley-sim/parley/internal/event"
	"github.com/parley-sim/parley/internal/scheduler"
	"github.com/parley-sim/parley/internal/session"
)

// subscriberID under which the runtime registers on the bus.
const subscriberID = "agent_runtime"

// Runtime wires an agent into a live negotiation. It subscribes to the
// bus, applies every event to the session, routes opponent and system
// events to the agent with a fresh Context, and translates the returned
// actions back into published events.
//
// Session mutation is serialised with a mutex: the bus delay poller and
// the scheduler loop may both dispatch concurrently, and session state
// wants a single writer. The agent call and action publishing happen
// outside the lock — publishing a zero-delay event dispatches
// synchronously and re-enters handleEvent on the same goroutine, which
// must not find the lock held.
type Runtime struct {
	bus    *bus.Bus
	sess   *session.Session
	agent  NegotiationAgent
	typing *scheduler.TypingIndicator

	mu sync.Mutex // guards session apply + context snapshot
}

// NewRuntime assembles a runtime. Call Attach to begin receiving events.
func NewRuntime(b *bus.Bus, sess *session.Session, ag NegotiationAgent) *Runtime {
	return &Runtime{
		bus:    b,
		sess:   sess,
		agent:  ag,
		typing: scheduler.NewTypingIndicator(b, event.SenderAgent),
	}
}

// Attach subscribes the runtime to all event types on the bus.
// Re-attaching replaces the prior subscription.
func (r *Runtime) Attach() {
	r.bus.Subscribe(subscriberID, r.handleEvent)
}

// Detach removes the runtime's bus subscription.
func (r *Runtime) Detach() {
	r.bus.Unsubscribe(subscriberID)
}

// Start begins the negotiation: transitions the session and publishes
// GAME_START, which flows back through the bus into the session and the
// agent (greeting, opening offer).
func (r *Runtime) Start() error {
	ev, err := r.sess.Start()
	if err != nil {
		return err
	}
	r.bus.Publish(ev)
	return nil
}

func (r *Runtime) handleEvent(ev event.Event) error {
	r.mu.Lock()
	r.sess.ApplyEvent(ev)
	route := r.routeToAgent(ev)
	var ctx *Context
	if route {
		ctx = r.buildContextLocked()
	}
	r.mu.Unlock()

	if !route {
		return nil
	}
	actions := r.agent.HandleEvent(ctx, ev)
	if len(actions) > 0 {
		r.Execute(actions)
	}
	return nil
}

// routeToAgent decides which events the decision layer sees: everything
// the opposing party does, plus the system lifecycle and clock events.
// The agent's own events never loop back to it.
func (r *Runtime) routeToAgent(ev event.Event) bool {
	if ev.SenderID == event.SenderHuman {
		return true
	}
	if ev.SenderID == event.SenderSystem {
		switch ev.Type {
		case event.TypeGameStart, event.TypeTime, event.TypeGameEnd:
			return true
		}
	}
	return false
}

// buildContextLocked assembles a fresh read-only snapshot for the agent.
// Caller holds r.mu.
func (r *Runtime) buildContextLocked() *Context {
	var remaining *float64
	if rem, ok := r.sess.Remaining(); ok {
		remaining = &rem
	}
	acc := r.sess.Acceptance()
	return &Context{
		Game:             r.sess.Game,
		AgentUtility:     r.sess.Game.AgentUtility,
		OpponentUtility:  r.sess.Game.HumanUtility,
		CurrentOffer:     r.sess.CurrentOffer().Clone(),
		History:          r.sess.History().All(),
		ElapsedSeconds:   r.sess.Elapsed(),
		RemainingSeconds: remaining,
		HumanHasAccepted: acc.HumanAccepted,
		AgentHasAccepted: acc.AgentAccepted,
		SessionID:        r.sess.ID,
	}
}

// Execute translates actions into events and publishes them in order.
// Each action's own delay rides on the event; Schedule adds its delay on
// top of the inner action's.
func (r *Runtime) Execute(actions []Action) {
	for _, a := range actions {
		r.executeOne(a, 0)
	}
}

func (r *Runtime) executeOne(a Action, extraDelayMS int) {
	switch act := a.(type) {
	case Schedule:
		r.executeOne(act.Action, extraDelayMS+act.DelayMS)

	case ShowTyping:
		r.typing.Show(time.Duration(act.DurationMS) * time.Millisecond)

	case SendMessage:
		r.typing.Hide()
		var ev event.Event
		if act.Preference != nil {
			ev = event.NewPreferenceMessage(event.SenderAgent, act.Text, act.Subtype, *act.Preference, act.DelayMS+extraDelayMS)
		} else {
			ev = event.NewMessage(event.SenderAgent, act.Text, act.Subtype, act.DelayMS+extraDelayMS)
		}
		r.bus.Publish(ev)

	case SendOffer:
		r.typing.Hide()
		if act.Offer == nil {
			slog.Warn("[RUNTIME] SendOffer with nil offer dropped", "agent", r.agent.ID())
			return
		}
		r.bus.Publish(event.NewOffer(event.SenderAgent, act.Offer.ToMap(), act.DelayMS+extraDelayMS))

	case SendExpression:
		r.typing.Hide()
		r.bus.Publish(event.NewExpression(event.SenderAgent, act.Expression, act.DurationMS, act.DelayMS+extraDelayMS))

	case FormalAccept:
		r.typing.Hide()
		r.bus.Publish(event.NewFormalAccept(event.SenderAgent, act.DelayMS+extraDelayMS))

	case FormalReject:
		r.typing.Hide()
		reason := act.Reason
		if reason == "" {
			reason = "rejected"
		}
		ev := event.NewGameEnd(reason, r.currentOfferMap())
		ev.DelayMS = act.DelayMS + extraDelayMS
		r.bus.Publish(ev)

	default:
		slog.Warn("[RUNTIME] unknown action type dropped", "agent", r.agent.ID())
	}
}

func (r *Runtime) currentOfferMap() map[string][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.sess.CurrentOffer()
	if o == nil {
		return nil
	}
	return o.ToMap()
}
