package negochat

import (
	"fmt"
	"sync"

	"github.com/parley-sim/parley/internal/agent"
	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// AgentConfig tunes the chat wrapper around the core algorithm.
type AgentConfig struct {
	Core Config `yaml:"core" json:"core"`

	// EmotionalMirroring echoes the opponent's expressions back
	// (anger is answered with neutral rather than mirrored).
	EmotionalMirroring bool `yaml:"emotional_mirroring" json:"emotional_mirroring"`

	// ResponseDelayMS simulates thinking/typing time before replies.
	ResponseDelayMS int `yaml:"response_delay_ms" json:"response_delay_ms"`

	// IdlePromptSeconds is how long the opponent may stay silent before
	// the agent pokes them.
	IdlePromptSeconds float64 `yaml:"idle_prompt_seconds" json:"idle_prompt_seconds"`

	// UnfairUtilityPercent is the utility percentage below which an
	// incoming offer counts as unfair.
	UnfairUtilityPercent float64 `yaml:"unfair_utility_percent" json:"unfair_utility_percent"`
}

// DefaultAgentConfig: mirror emotions, reply after 1s, prompt after 30s
// idle, take offense below 20% utility.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Core:                 DefaultConfig(),
		EmotionalMirroring:   true,
		ResponseDelayMS:      1000,
		IdlePromptSeconds:    30,
		UnfairUtilityPercent: 20,
	}
}

// Normalize fills zero fields with defaults. EmotionalMirroring is left
// as given: false is a valid setting.
func (c AgentConfig) Normalize() AgentConfig {
	d := DefaultAgentConfig()
	c.Core = c.Core.Normalize()
	if c.ResponseDelayMS == 0 {
		c.ResponseDelayMS = d.ResponseDelayMS
	}
	if c.IdlePromptSeconds == 0 {
		c.IdlePromptSeconds = d.IdlePromptSeconds
	}
	if c.UnfairUtilityPercent == 0 {
		c.UnfairUtilityPercent = d.UnfairUtilityPercent
	}
	return c
}

// Agent is the chat-facing NegoChat agent: the core algorithm plus
// template text, expressions, typing delays, idle prompts, and an
// unfairness reaction. The core and templates are built lazily on the
// first event carrying a game context, so one Agent value can be
// constructed before the game is known.
type Agent struct {
	cfg AgentConfig

	mu        sync.Mutex
	core      *Core
	templates *Templates

	consecutiveBadOffers int
}

// NewAgent creates a NegoChat agent.
func NewAgent(cfg AgentConfig) *Agent {
	return &Agent{cfg: cfg.Normalize()}
}

func (a *Agent) ID() string { return "negochat" }

func (a *Agent) Description() string {
	return fmt.Sprintf("NegoChat agent using %s strategy", a.cfg.Core.Strategy)
}

// Reset clears negotiation progress but keeps configuration.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.core != nil {
		a.core.Reset()
	}
	a.consecutiveBadOffers = 0
}

// Stats exposes the core's progress counters (zero before game start).
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.core == nil {
		return Stats{}
	}
	return a.core.Stats()
}

// ensureCore builds the algorithm and templates from the context.
// Caller holds a.mu.
func (a *Agent) ensureCore(ctx *agent.Context) {
	if a.core != nil {
		return
	}
	a.core = NewCore(ctx.Game, ctx.AgentUtility, ctx.OpponentUtility, a.cfg.Core)
	a.templates = NewTemplates(ctx.Game)
}

// HandleEvent dispatches by event type. The lock is held across the
// whole decision so interleaved dispatch goroutines cannot corrupt the
// core's counters.
func (a *Agent) HandleEvent(ctx *agent.Context, ev event.Event) []agent.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureCore(ctx)

	switch ev.Type {
	case event.TypeGameStart:
		return a.onGameStart()
	case event.TypeSendOffer:
		return a.onOffer(ctx, ev)
	case event.TypeSendMessage:
		return a.onMessage(ctx, ev)
	case event.TypeSendExpression:
		return a.onExpression(ev)
	case event.TypeFormalAccept:
		return a.onFormalAccept(ctx)
	case event.TypeTime:
		return a.onTime(ctx)
	case event.TypeGameEnd:
		return a.onGameEnd(ev)
	case event.TypeOfferInProgress:
		// Opponent is active; nothing to say.
		return nil
	}
	return nil
}

// onGameStart greets, smiles, and leads with the opening offer.
func (a *Agent) onGameStart() []agent.Action {
	a.core.Reset()
	a.consecutiveBadOffers = 0

	opening := a.core.OpeningOffer()
	return []agent.Action{
		agent.SendExpression{Expression: event.ExprHappy, DurationMS: 1500},
		agent.SendMessage{Text: a.templates.Greeting(), Subtype: event.SubtypeGreeting, DelayMS: 500},
		agent.SendMessage{
			Text:    a.templates.OpeningProposal() + " " + a.templates.DescribeOffer(opening),
			Subtype: event.SubtypeOfferPropose,
			DelayMS: a.cfg.ResponseDelayMS,
		},
		agent.SendOffer{Offer: opening, DelayMS: 300},
	}
}

// onOffer evaluates the opponent's offer and accepts, counters, or
// rejects with a concession. Repeatedly unfair offers turn the reply
// angry.
func (a *Agent) onOffer(ctx *agent.Context, ev event.Event) []agent.Action {
	offer, err := domain.OfferFromMap(ev.Offer())
	if err != nil || offer == nil {
		return nil
	}

	pct := ctx.AgentUtilityPercent(offer)
	unfair := pct < a.cfg.UnfairUtilityPercent
	if unfair {
		a.consecutiveBadOffers++
	} else {
		a.consecutiveBadOffers = 0
	}
	angry := unfair || a.consecutiveBadOffers >= 2

	response, counter := a.core.HandleOffer(offer)
	var actions []agent.Action

	switch {
	case response == ResponseAccept:
		if offer.IsComplete() {
			actions = append(actions,
				agent.SendExpression{Expression: event.ExprHappy, DurationMS: 2000},
				agent.SendMessage{Text: a.templates.AcceptText(true), Subtype: event.SubtypeOfferAccept, DelayMS: a.cfg.ResponseDelayMS},
				agent.FormalAccept{DelayMS: 500},
			)
		} else {
			actions = append(actions,
				agent.SendMessage{Text: a.templates.AcceptText(false), Subtype: event.SubtypeOfferAccept, DelayMS: a.cfg.ResponseDelayMS},
			)
		}

	case response == ResponseCounter && counter != nil:
		eval := a.core.EvaluateOffer(offer)
		strongReject := eval.UtilityPercent < a.cfg.Core.MinAcceptableUtility*0.5

		if angry {
			actions = append(actions, agent.SendExpression{Expression: event.ExprAngry, DurationMS: 2500})
		} else if strongReject {
			actions = append(actions, agent.SendExpression{Expression: event.ExprSad, DurationMS: 1500})
		}

		rejectText := a.templates.RejectText(strongReject)
		if angry {
			rejectText = "That is simply not fair. I cannot accept that."
		}
		actions = append(actions,
			agent.SendMessage{Text: rejectText, Subtype: event.SubtypeOfferReject, DelayMS: a.cfg.ResponseDelayMS},
			agent.SendMessage{
				Text:    a.templates.CounterProposal() + " " + a.templates.DescribeOffer(counter),
				Subtype: event.SubtypeOfferPropose,
				DelayMS: a.cfg.ResponseDelayMS,
			},
			agent.SendOffer{Offer: counter, DelayMS: 300},
		)

	default:
		// Reject outright, then try to keep things moving with a
		// concession of our own.
		if angry {
			actions = append(actions, agent.SendExpression{Expression: event.ExprAngry, DurationMS: 2500})
		} else {
			actions = append(actions, agent.SendExpression{Expression: event.ExprSad, DurationMS: 1500})
		}

		rejectText := a.templates.RejectText(true)
		if angry {
			rejectText = "I'm getting frustrated. You need to be more reasonable."
		}
		actions = append(actions, agent.SendMessage{Text: rejectText, Subtype: event.SubtypeOfferReject, DelayMS: a.cfg.ResponseDelayMS})

		if concession := a.core.MakeConcession(); concession != nil {
			actions = append(actions,
				agent.SendMessage{
					Text:    a.templates.ConcessionText() + " " + a.templates.DescribeOffer(concession),
					Subtype: event.SubtypeOfferPropose,
					DelayMS: a.cfg.ResponseDelayMS * 2,
				},
				agent.SendOffer{Offer: concession, DelayMS: 300},
			)
		}
	}
	return actions
}

// onMessage answers preference queries with the agent's top issue and
// acknowledges shared preference information. Free-form chat gets no
// reply; this is the structured variant without NLU.
func (a *Agent) onMessage(ctx *agent.Context, ev event.Event) []agent.Action {
	pref := ev.Preference()
	if pref == nil {
		return nil
	}
	if pref.IsQuery {
		return []agent.Action{
			agent.SendMessage{
				Text:    a.templates.WantIssueText(ctx.AgentBestIssue()),
				Subtype: event.SubtypePrefInfo,
				DelayMS: a.cfg.ResponseDelayMS,
			},
		}
	}
	return []agent.Action{
		agent.SendMessage{
			Text:    "Good to know, thanks for sharing.",
			Subtype: event.SubtypeConfirmation,
			DelayMS: a.cfg.ResponseDelayMS,
		},
	}
}

// onExpression replies to an emotion with text, and mirrors it when
// configured. Anger is met with neutral, never mirrored back.
func (a *Agent) onExpression(ev event.Event) []agent.Action {
	expr := ev.Expression()
	if !event.ValidExpression(string(expr)) {
		return nil
	}

	actions := []agent.Action{
		agent.SendMessage{Text: a.templates.EmotionResponse(expr), DelayMS: a.cfg.ResponseDelayMS},
	}
	if a.cfg.EmotionalMirroring {
		mirrored := expr
		if expr == event.ExprAngry {
			mirrored = event.ExprNeutral
		}
		actions = append(actions, agent.SendExpression{Expression: mirrored, DurationMS: 1500})
	}
	return actions
}

// onFormalAccept reciprocates when the deal on the board clears the
// agent's own bar, and says so when it doesn't.
func (a *Agent) onFormalAccept(ctx *agent.Context) []agent.Action {
	if !ctx.CanFormallyAccept() {
		return nil
	}
	if ctx.AgentUtilityPercent(nil) >= a.cfg.Core.MinAcceptableUtility*100 {
		return []agent.Action{
			agent.SendExpression{Expression: event.ExprHappy, DurationMS: 2000},
			agent.SendMessage{Text: a.templates.AcceptText(true), Subtype: event.SubtypeOfferAccept, DelayMS: a.cfg.ResponseDelayMS},
			agent.FormalAccept{DelayMS: 500},
		}
	}
	return []agent.Action{
		agent.SendMessage{
			Text:    "I appreciate you being ready to close, but I need a better deal.",
			Subtype: event.SubtypeOfferReject,
			DelayMS: a.cfg.ResponseDelayMS,
		},
	}
}

// onTime prompts an idle opponent; when under a minute remains, the
// prompt becomes time pressure.
func (a *Agent) onTime(ctx *agent.Context) []agent.Action {
	idle, ok := ctx.SecondsSinceLastAction()
	if !ok || idle <= a.cfg.IdlePromptSeconds {
		return nil
	}
	if ctx.RemainingSeconds != nil && *ctx.RemainingSeconds < 60 {
		return []agent.Action{
			agent.SendMessage{Text: a.templates.TimePressureText(), Subtype: event.SubtypeTimingInfo},
		}
	}
	return []agent.Action{
		agent.SendMessage{Text: a.templates.PromptText(), DelayMS: 500},
	}
}

// onGameEnd says goodbye, happy or sad depending on how it ended.
func (a *Agent) onGameEnd(ev event.Event) []agent.Action {
	success := ev.Reason() == "mutual_agreement"
	actions := []agent.Action{
		agent.SendMessage{Text: a.templates.Farewell(success), Subtype: event.SubtypeFarewell},
	}
	if success {
		actions = append(actions, agent.SendExpression{Expression: event.ExprHappy, DurationMS: 3000})
	} else {
		actions = append(actions, agent.SendExpression{Expression: event.ExprSad, DurationMS: 2000})
	}
	return actions
}
