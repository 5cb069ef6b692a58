package agent

import (
	"time"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// Context is the read-only snapshot handed to the decision layer on
// every dispatch: game spec, both utility functions, the current offer
// (a private clone), the full history, timing, and acceptance flags.
// All derived queries are pure functions over the snapshot — an agent
// cannot affect session state except through returned actions.
type Context struct {
	Game *domain.GameSpec

	AgentUtility    domain.UtilityFunction
	OpponentUtility domain.UtilityFunction

	CurrentOffer *domain.Offer
	History      []event.Event

	ElapsedSeconds   float64
	RemainingSeconds *float64 // nil = no deadline

	HumanHasAccepted bool
	AgentHasAccepted bool

	SessionID string
	GameIndex int
}

// Issues returns all issues in the game.
func (c *Context) Issues() []domain.Issue { return c.Game.Issues }

// IssueNames returns all issue names in declaration order.
func (c *Context) IssueNames() []string { return c.Game.IssueNames() }

// NumIssues returns the number of issues.
func (c *Context) NumIssues() int { return len(c.Game.Issues) }

// Issue looks up one issue by name.
func (c *Context) Issue(name string) (domain.Issue, bool) { return c.Game.Issue(name) }

// offerOrCurrent resolves the offer-defaulting convention: nil means
// the current offer.
func (c *Context) offerOrCurrent(offer *domain.Offer) *domain.Offer {
	if offer == nil {
		return c.CurrentOffer
	}
	return offer
}

// AgentUtilityOf scores an offer for this agent (nil = current offer).
func (c *Context) AgentUtilityOf(offer *domain.Offer) float64 {
	return c.AgentUtility.Calculate(c.offerOrCurrent(offer))
}

// OpponentUtilityOf scores an offer for the opponent (nil = current offer).
func (c *Context) OpponentUtilityOf(offer *domain.Offer) float64 {
	return c.OpponentUtility.Calculate(c.offerOrCurrent(offer))
}

// MaxAgentUtility is the agent's utility if it won every unit.
func (c *Context) MaxAgentUtility() float64 {
	return c.AgentUtility.MaxPossible(c.Game.Issues)
}

// MaxOpponentUtility is the opponent's utility if they won every unit.
func (c *Context) MaxOpponentUtility() float64 {
	return c.OpponentUtility.MaxPossible(c.Game.Issues)
}

// AgentUtilityPercent returns agent utility as a percentage of max
// (0 when the max is 0).
func (c *Context) AgentUtilityPercent(offer *domain.Offer) float64 {
	max := c.MaxAgentUtility()
	if max == 0 {
		return 0
	}
	return c.AgentUtilityOf(offer) / max * 100
}

// OpponentUtilityPercent returns opponent utility as a percentage of max.
func (c *Context) OpponentUtilityPercent(offer *domain.Offer) float64 {
	max := c.MaxOpponentUtility()
	if max == 0 {
		return 0
	}
	return c.OpponentUtilityOf(offer) / max * 100
}

// LastOfferBy returns the most recent offer sent by senderID, decoded.
func (c *Context) LastOfferBy(senderID string) (*domain.Offer, bool) {
	for i := len(c.History) - 1; i >= 0; i-- {
		ev := c.History[i]
		if ev.Type != event.TypeSendOffer || ev.SenderID != senderID {
			continue
		}
		o, err := domain.OfferFromMap(ev.Offer())
		if err != nil {
			return nil, false
		}
		return o, true
	}
	return nil, false
}

// LastHumanOffer returns the most recent offer from the human.
func (c *Context) LastHumanOffer() (*domain.Offer, bool) {
	return c.LastOfferBy(event.SenderHuman)
}

// LastAgentOffer returns the most recent offer from the agent.
func (c *Context) LastAgentOffer() (*domain.Offer, bool) {
	return c.LastOfferBy(event.SenderAgent)
}

// OfferCount returns the total number of offers made so far.
func (c *Context) OfferCount() int {
	var n int
	for _, ev := range c.History {
		if ev.Type == event.TypeSendOffer {
			n++
		}
	}
	return n
}

// OfferCountBy returns the number of offers from one sender.
func (c *Context) OfferCountBy(senderID string) int {
	var n int
	for _, ev := range c.History {
		if ev.Type == event.TypeSendOffer && ev.SenderID == senderID {
			n++
		}
	}
	return n
}

// SecondsSinceLastAction returns seconds since the last non-TIME event.
// ok is false when history holds nothing but ticks.
func (c *Context) SecondsSinceLastAction() (float64, bool) {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Type == event.TypeTime {
			continue
		}
		now := float64(time.Now().UnixNano()) / 1e9
		return now - c.History[i].Timestamp, true
	}
	return 0, false
}

// IsOfferComplete reports whether an offer (nil = current) covers every
// game issue with nothing left in the middle.
func (c *Context) IsOfferComplete(offer *domain.Offer) bool {
	o := c.offerOrCurrent(offer)
	for _, is := range c.Game.Issues {
		a, ok := o.Allocation(is.Name)
		if !ok || !a.IsComplete() {
			return false
		}
	}
	return true
}

// CanFormallyAccept reports whether a formal accept would be honoured
// right now.
func (c *Context) CanFormallyAccept() bool {
	return c.IsOfferComplete(nil)
}

// IsOfferAcceptable applies a minimum utility-percent threshold to an
// offer (nil = current).
func (c *Context) IsOfferAcceptable(offer *domain.Offer, minUtilityPercent float64) bool {
	return c.AgentUtilityPercent(offer) >= minUtilityPercent
}

// AgentPreferenceOrder returns issues sorted by the agent's valuation,
// highest first.
func (c *Context) AgentPreferenceOrder() []string {
	return c.AgentUtility.IssuePriority()
}

// OpponentPreferenceOrder returns issues sorted by the opponent's
// valuation, highest first.
func (c *Context) OpponentPreferenceOrder() []string {
	return c.OpponentUtility.IssuePriority()
}

// AgentBestIssue returns the issue the agent values most.
func (c *Context) AgentBestIssue() string { return c.AgentUtility.BestIssue() }

// AgentWorstIssue returns the issue the agent values least.
func (c *Context) AgentWorstIssue() string { return c.AgentUtility.WorstIssue() }

// DisplayName returns the configured display name for an issue.
func (c *Context) DisplayName(issueName string, plural bool) string {
	return c.Game.DisplayName(issueName, plural)
}
