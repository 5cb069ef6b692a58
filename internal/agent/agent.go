package agent

import (
	"github.com/parley-sim/parley/internal/event"
)

// NegotiationAgent is the decision layer: given a fresh Context and the
// event that just happened, it returns the actions it wants taken. It
// never touches session state directly — returned actions are its only
// effect on the world.
//
// HandleEvent is called from bus dispatch, one event at a time, so
// implementations need no internal locking unless they share state with
// other goroutines of their own.
type NegotiationAgent interface {
	// ID identifies the agent implementation (used in logs).
	ID() string
	// HandleEvent reacts to one event. A nil or empty slice means no
	// reaction.
	HandleEvent(ctx *Context, ev event.Event) []Action
	// Reset clears internal state for a fresh negotiation.
	Reset()
	// Description is a one-line human-readable summary.
	Description() string
}

// BaseAgent provides no-op defaults for the NegotiationAgent interface.
// Embed it to implement only the behavior an agent cares about.
type BaseAgent struct{}

func (BaseAgent) ID() string                                 { return "base" }
func (BaseAgent) Description() string                        { return "inert agent" }
func (BaseAgent) Reset()                                     {}
func (BaseAgent) HandleEvent(*Context, event.Event) []Action { return nil }

// SimpleConfig configures SimpleAgent. Fields are explicit and typed;
// decoding a config file with unknown keys fails rather than silently
// ignoring them.
type SimpleConfig struct {
	MinUtilityPercent float64 `yaml:"min_utility_percent" json:"min_utility_percent"`
	Greeting          string  `yaml:"greeting" json:"greeting"`
}

// DefaultSimpleConfig accepts anything worth 40% or more.
func DefaultSimpleConfig() SimpleConfig {
	return SimpleConfig{
		MinUtilityPercent: 40,
		Greeting:          "Hello! Let's negotiate.",
	}
}

// SimpleAgent accepts any complete offer above a utility threshold.
// Useful as a baseline and in tests.
type SimpleAgent struct {
	cfg SimpleConfig
}

// NewSimpleAgent creates a SimpleAgent with the given config.
func NewSimpleAgent(cfg SimpleConfig) *SimpleAgent {
	if cfg.MinUtilityPercent == 0 {
		cfg.MinUtilityPercent = DefaultSimpleConfig().MinUtilityPercent
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultSimpleConfig().Greeting
	}
	return &SimpleAgent{cfg: cfg}
}

func (a *SimpleAgent) ID() string { return "simple" }

func (a *SimpleAgent) Description() string {
	return "Simple agent that accepts complete offers above its utility threshold"
}

func (a *SimpleAgent) Reset() {}

func (a *SimpleAgent) HandleEvent(ctx *Context, ev event.Event) []Action {
	switch ev.Type {
	case event.TypeGameStart:
		return []Action{
			SendExpression{Expression: event.ExprHappy, DurationMS: 1500},
			SendMessage{Text: a.cfg.Greeting, Subtype: event.SubtypeGreeting},
		}

	case event.TypeSendOffer:
		pct := ctx.AgentUtilityPercent(nil)
		if pct >= a.cfg.MinUtilityPercent {
			if ctx.CanFormallyAccept() {
				return []Action{
					SendMessage{Text: "That works for me!", Subtype: event.SubtypeOfferAccept},
					FormalAccept{},
				}
			}
			return []Action{
				SendMessage{Text: "I like this direction, but let's finalize all items.", Subtype: event.SubtypeOfferAccept},
			}
		}
		return []Action{
			SendMessage{Text: "I'll need a better deal than that.", Subtype: event.SubtypeOfferReject},
		}

	case event.TypeSendExpression:
		// Mirror whatever the human shows.
		expr := ev.Expression()
		if !event.ValidExpression(string(expr)) {
			return nil
		}
		return []Action{SendExpression{Expression: expr, DurationMS: 1500}}

	case event.TypeSendMessage, event.TypeOfferInProgress, event.TypeTime,
		event.TypeFormalAccept, event.TypeGameEnd:
		return nil
	}
	return nil
}
