// Package negochat implements the issue-by-issue negotiation strategy
// from "NegoChat: A Chat-Based Negotiation Agent" (Rosenfeld et al.):
// partition issues into a stack the agent values more (claim these) and
// a stack the opponent values more (trade material), open by claiming
// the first and splitting the rest, then concede one unit at a time
// from the trade stack.
package negochat

import (
	"sort"

	"github.com/parley-sim/parley/internal/domain"
)

// Strategy selects how the stacks are ordered and how generous the
// opening offer is.
type Strategy string

const (
	// StrategyAggressive orders both stacks by the agent's own values.
	StrategyAggressive Strategy = "aggressive"
	// StrategyBalanced orders by value difference (the default).
	StrategyBalanced Strategy = "balanced"
	// StrategyCooperative trades the opponent's cheapest wants first and
	// opens by giving away the trade stack outright.
	StrategyCooperative Strategy = "cooperative"
)

// ValidStrategy reports whether s is one of the known strategies.
func ValidStrategy(s string) bool {
	switch Strategy(s) {
	case StrategyAggressive, StrategyBalanced, StrategyCooperative:
		return true
	}
	return false
}

// Config tunes the core algorithm. Zero values fall back to defaults
// via Normalize.
type Config struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`

	// MinAcceptableUtility is the accept threshold as a fraction of the
	// agent's maximum possible utility.
	MinAcceptableUtility float64 `yaml:"min_acceptable_utility" json:"min_acceptable_utility"`

	// ConcessionRate reserved for time-dependent concession pacing.
	ConcessionRate float64 `yaml:"concession_rate" json:"concession_rate"`

	// MaxCounterChanges caps how many single-unit moves one counter-offer
	// may make (reclaims and compensations share the budget).
	MaxCounterChanges int `yaml:"max_counter_changes" json:"max_counter_changes"`
}

// DefaultConfig: balanced strategy, accept at 40% of max, counter with
// at most 2 unit moves.
func DefaultConfig() Config {
	return Config{
		Strategy:             StrategyBalanced,
		MinAcceptableUtility: 0.4,
		ConcessionRate:       0.1,
		MaxCounterChanges:    2,
	}
}

// Normalize fills zero fields with defaults.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.MinAcceptableUtility == 0 {
		c.MinAcceptableUtility = d.MinAcceptableUtility
	}
	if c.ConcessionRate == 0 {
		c.ConcessionRate = d.ConcessionRate
	}
	if c.MaxCounterChanges == 0 {
		c.MaxCounterChanges = d.MaxCounterChanges
	}
	return c
}

// issueAnalysis is the per-issue view used for stack building.
type issueAnalysis struct {
	name          string
	agentValue    float64
	opponentValue float64
	quantity      int
}

// valueDifference is positive when the agent values the issue more.
func (a issueAnalysis) valueDifference() float64 {
	return a.agentValue - a.opponentValue
}

// Stacks is the partition of issues driving the strategy: StackA holds
// issues the agent values strictly more (claim), StackB issues the
// opponent values strictly more (trade material), Neutral the ties.
type Stacks struct {
	StackA  []string
	StackB  []string
	Neutral []string
}

// Recommendation classifies an evaluated offer.
type Recommendation string

const (
	RecommendAccept        Recommendation = "accept"
	RecommendCounterMild   Recommendation = "counter_mild"
	RecommendCounterStrong Recommendation = "counter_strong"
)

// Evaluation is the scored view of an incoming offer.
type Evaluation struct {
	Acceptable     bool
	Utility        float64
	UtilityPercent float64 // fraction of max, 0..1
	MaxUtility     float64
	Recommendation Recommendation
}

// Response is what HandleOffer decided to do with an incoming offer.
type Response string

const (
	ResponseAccept  Response = "accept"
	ResponseReject  Response = "reject"
	ResponseCounter Response = "counter"
)

// Stats is a loggable snapshot of algorithm progress.
type Stats struct {
	OffersMade  int
	Concessions int
	StackASize  int
	StackBSize  int
	NeutralSize int
}

// Core is the NegoChat decision algorithm for one game. It is pure
// negotiation logic: no events, no timing, no text. Not safe for
// concurrent use; the owning agent serialises access.
type Core struct {
	game     *domain.GameSpec
	agent    domain.UtilityFunction
	opponent domain.UtilityFunction
	cfg      Config

	stacks Stacks

	currentProposal   *domain.Offer
	lastOpponentOffer *domain.Offer
	concessionCount   int
	offersMade        int
}

// NewCore builds the algorithm for a game. The stacks are fixed at
// construction: they depend only on the utility functions.
func NewCore(game *domain.GameSpec, agent, opponent domain.UtilityFunction, cfg Config) *Core {
	c := &Core{
		game:     game,
		agent:    agent,
		opponent: opponent,
		cfg:      cfg.Normalize(),
	}
	c.stacks = c.buildStacks()
	return c
}

// buildStacks partitions issues by the sign of the value difference and
// orders them: by difference descending first, then reordered per
// strategy.
func (c *Core) buildStacks() Stacks {
	analyses := make([]issueAnalysis, 0, len(c.game.Issues))
	for _, is := range c.game.Issues {
		analyses = append(analyses, issueAnalysis{
			name:          is.Name,
			agentValue:    c.agent.Values[is.Name],
			opponentValue: c.opponent.Values[is.Name],
			quantity:      is.Quantity,
		})
	}
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].valueDifference() > analyses[j].valueDifference()
	})

	var s Stacks
	for _, a := range analyses {
		switch {
		case a.valueDifference() > 0:
			s.StackA = append(s.StackA, a.name)
		case a.valueDifference() < 0:
			s.StackB = append(s.StackB, a.name)
		default:
			s.Neutral = append(s.Neutral, a.name)
		}
	}

	switch c.cfg.Strategy {
	case StrategyAggressive:
		// Most valuable to the agent first, in both stacks.
		sort.SliceStable(s.StackA, func(i, j int) bool {
			return c.agent.Values[s.StackA[i]] > c.agent.Values[s.StackA[j]]
		})
		sort.SliceStable(s.StackB, func(i, j int) bool {
			return c.agent.Values[s.StackB[i]] > c.agent.Values[s.StackB[j]]
		})
	case StrategyCooperative:
		// Trade the opponent's cheapest wants first.
		sort.SliceStable(s.StackB, func(i, j int) bool {
			return c.opponent.Values[s.StackB[i]] < c.opponent.Values[s.StackB[j]]
		})
	}
	return s
}

// Stacks returns the issue partition (shared slices; treat as read-only).
func (c *Core) Stacks() Stacks { return c.stacks }

func (c *Core) inStack(stack []string, name string) bool {
	for _, n := range stack {
		if n == name {
			return true
		}
	}
	return false
}

// OpeningOffer claims all of StackA, splits neutral issues, and splits
// StackB — or gives StackB away outright under the cooperative strategy.
func (c *Core) OpeningOffer() *domain.Offer {
	offer := domain.NewOffer()
	for _, is := range c.game.Issues {
		switch {
		case c.inStack(c.stacks.StackA, is.Name):
			offer.Set(is.Name, domain.AllToAgent(is.Quantity))
		case c.inStack(c.stacks.StackB, is.Name):
			if c.cfg.Strategy == StrategyCooperative {
				offer.Set(is.Name, domain.AllToHuman(is.Quantity))
			} else {
				offer.Set(is.Name, domain.SplitEven(is.Quantity))
			}
		default:
			offer.Set(is.Name, domain.SplitEven(is.Quantity))
		}
	}
	c.currentProposal = offer
	c.offersMade++
	return offer
}

// NextOffer returns the opening offer on first call, then a one-unit
// concession on each later call. nil means nothing left to concede.
func (c *Core) NextOffer() *domain.Offer {
	if c.offersMade == 0 {
		return c.OpeningOffer()
	}
	return c.MakeConcession()
}

// MakeConcession gives up one unit from the current proposal, trying
// StackB first (agent units, then middle units), then neutral issues,
// then StackA in reverse (least valuable first). nil when no unit can
// move.
func (c *Core) MakeConcession() *domain.Offer {
	if c.currentProposal == nil {
		return c.OpeningOffer()
	}

	offer := c.currentProposal.Clone()
	made := false

	for _, name := range c.stacks.StackB {
		cur, ok := offer.Allocation(name)
		if !ok {
			continue
		}
		if cur.Agent > 0 {
			offer.Set(name, domain.Allocation{Agent: cur.Agent - 1, Middle: cur.Middle, Human: cur.Human + 1})
			made = true
			break
		}
		if cur.Middle > 0 {
			offer.Set(name, domain.Allocation{Agent: cur.Agent, Middle: cur.Middle - 1, Human: cur.Human + 1})
			made = true
			break
		}
	}

	if !made {
		for _, name := range c.stacks.Neutral {
			cur, ok := offer.Allocation(name)
			if !ok {
				continue
			}
			if cur.Agent > 0 {
				offer.Set(name, domain.Allocation{Agent: cur.Agent - 1, Middle: cur.Middle, Human: cur.Human + 1})
				made = true
				break
			}
		}
	}

	if !made {
		// Last resort: give up own wants, least valuable first.
		for i := len(c.stacks.StackA) - 1; i >= 0; i-- {
			name := c.stacks.StackA[i]
			cur, ok := offer.Allocation(name)
			if !ok {
				continue
			}
			if cur.Agent > 0 {
				offer.Set(name, domain.Allocation{Agent: cur.Agent - 1, Middle: cur.Middle, Human: cur.Human + 1})
				made = true
				break
			}
		}
	}

	if !made {
		return nil
	}
	c.currentProposal = offer
	c.concessionCount++
	c.offersMade++
	return offer
}

// EvaluateOffer scores an incoming offer against the accept threshold.
// Accept needs both the threshold met and a complete offer; near-misses
// (>= 80% of threshold) get a mild counter, the rest a strong one.
func (c *Core) EvaluateOffer(offer *domain.Offer) Evaluation {
	utility := c.agent.Calculate(offer)
	maxUtility := c.agent.MaxPossible(c.game.Issues)
	var pct float64
	if maxUtility > 0 {
		pct = utility / maxUtility
	}

	acceptable := pct >= c.cfg.MinAcceptableUtility
	var rec Recommendation
	switch {
	case acceptable && offer.IsComplete():
		rec = RecommendAccept
	case pct >= c.cfg.MinAcceptableUtility*0.8:
		rec = RecommendCounterMild
	default:
		rec = RecommendCounterStrong
	}

	return Evaluation{
		Acceptable:     acceptable,
		Utility:        utility,
		UtilityPercent: pct,
		MaxUtility:     maxUtility,
		Recommendation: rec,
	}
}

// HandleOffer decides accept, reject, or counter for an opponent offer.
// When no counter can be generated, a near-threshold offer (>= 90% of
// the accept bar) is accepted rather than stalling the negotiation.
func (c *Core) HandleOffer(offer *domain.Offer) (Response, *domain.Offer) {
	c.lastOpponentOffer = offer
	eval := c.EvaluateOffer(offer)

	if eval.Recommendation == RecommendAccept {
		return ResponseAccept, nil
	}

	counter := c.GenerateCounter(offer)
	if counter == nil {
		if eval.UtilityPercent >= c.cfg.MinAcceptableUtility*0.9 {
			return ResponseAccept, nil
		}
		return ResponseReject, nil
	}
	return ResponseCounter, counter
}

// GenerateCounter starts from the opponent's offer and nudges it toward
// the agent: reclaim StackA units the opponent took, then compensate
// with StackB units. At most MaxCounterChanges single-unit moves total;
// nil when nothing could be improved.
func (c *Core) GenerateCounter(opponentOffer *domain.Offer) *domain.Offer {
	counter := opponentOffer.Clone()
	changes := 0

	for _, name := range c.stacks.StackA {
		if changes >= c.cfg.MaxCounterChanges {
			break
		}
		is, ok := c.game.Issue(name)
		if !ok {
			continue
		}
		alloc, ok := counter.Allocation(name)
		if !ok {
			continue
		}
		if alloc.Human > 0 && alloc.Agent < is.Quantity {
			counter.Set(name, domain.Allocation{Agent: alloc.Agent + 1, Middle: alloc.Middle, Human: alloc.Human - 1})
			changes++
		}
	}

	for _, name := range c.stacks.StackB {
		if changes >= c.cfg.MaxCounterChanges {
			break
		}
		alloc, ok := counter.Allocation(name)
		if !ok {
			continue
		}
		if alloc.Agent > 0 {
			counter.Set(name, domain.Allocation{Agent: alloc.Agent - 1, Middle: alloc.Middle, Human: alloc.Human + 1})
			changes++
		}
	}

	if changes == 0 {
		return nil
	}
	c.currentProposal = counter
	c.offersMade++
	return counter
}

// CurrentProposal returns the agent's latest proposal (nil before any).
func (c *Core) CurrentProposal() *domain.Offer { return c.currentProposal }

// LastOpponentOffer returns the last offer handled (nil before any).
func (c *Core) LastOpponentOffer() *domain.Offer { return c.lastOpponentOffer }

// Reset clears progress for a fresh negotiation.
func (c *Core) Reset() {
	c.stacks = c.buildStacks()
	c.currentProposal = nil
	c.lastOpponentOffer = nil
	c.concessionCount = 0
	c.offersMade = 0
}

// Stats returns a snapshot of progress counters and stack sizes.
func (c *Core) Stats() Stats {
	return Stats{
		OffersMade:  c.offersMade,
		Concessions: c.concessionCount,
		StackASize:  len(c.stacks.StackA),
		StackBSize:  len(c.stacks.StackB),
		NeutralSize: len(c.stacks.Neutral),
	}
}
