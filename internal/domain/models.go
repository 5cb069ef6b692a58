// Package domain holds the negotiation value types: issues, allocations,
// offers, utility functions, protocol rules, and the GameSpec aggregate.
//
// Everything here is plain data. GameSpec is validated once at construction
// and read-only afterwards; Offer and Allocation are created per exchange
// and never shared between parties (Clone before handing across a boundary).
package domain

import (
	"fmt"
	"sort"
)

// Party identifies one side of the negotiation.
type Party string

const (
	PartyAgent Party = "agent"
	PartyHuman Party = "human"
)

// Issue is a single negotiable resource type with a fixed total quantity.
type Issue struct {
	Name        string
	DisplayName string
	Quantity    int
	Divisible   bool
}

// Allocation is the three-way split of one issue's units.
// Middle counts units nobody has claimed yet.
type Allocation struct {
	Agent  int
	Middle int
	Human  int
}

// Total returns the number of units this allocation accounts for.
func (a Allocation) Total() int { return a.Agent + a.Middle + a.Human }

// IsComplete reports whether no units remain undecided.
func (a Allocation) IsComplete() bool { return a.Middle == 0 }

// Tuple returns the wire form [agent, middle, human].
func (a Allocation) Tuple() []int { return []int{a.Agent, a.Middle, a.Human} }

// AllocationFromTuple builds an Allocation from the wire form.
// Short or negative tuples yield an error rather than a silent default.
func AllocationFromTuple(t []int) (Allocation, error) {
	if len(t) != 3 {
		return Allocation{}, fmt.Errorf("allocation tuple must have 3 entries, got %d", len(t))
	}
	if t[0] < 0 || t[1] < 0 || t[2] < 0 {
		return Allocation{}, fmt.Errorf("allocation counts cannot be negative: %v", t)
	}
	return Allocation{Agent: t[0], Middle: t[1], Human: t[2]}, nil
}

// AllToAgent allocates every unit to the agent.
func AllToAgent(quantity int) Allocation { return Allocation{Agent: quantity} }

// AllToHuman allocates every unit to the human.
func AllToHuman(quantity int) Allocation { return Allocation{Human: quantity} }

// AllInMiddle leaves every unit undecided.
func AllInMiddle(quantity int) Allocation { return Allocation{Middle: quantity} }

// SplitEven gives each party half; an odd remainder stays in the middle.
func SplitEven(quantity int) Allocation {
	each := quantity / 2
	return Allocation{Agent: each, Middle: quantity - 2*each, Human: each}
}

// Offer maps issue names to allocations. An issue may be present with a
// nil allocation (seen but not yet addressed) or absent entirely; both
// count as unset. Offers are value objects: use Clone before mutating a
// copy that another component may still hold.
type Offer struct {
	allocations map[string]*Allocation
}

// NewOffer returns an offer with no issues addressed.
func NewOffer() *Offer {
	return &Offer{allocations: make(map[string]*Allocation)}
}

// EmptyOffer returns an offer listing every issue as unset.
func EmptyOffer(issueNames []string) *Offer {
	o := NewOffer()
	for _, name := range issueNames {
		o.allocations[name] = nil
	}
	return o
}

// AllInMiddleOffer returns the starting board: every unit undecided.
func AllInMiddleOffer(issues []Issue) *Offer {
	o := NewOffer()
	for _, is := range issues {
		a := AllInMiddle(is.Quantity)
		o.allocations[is.Name] = &a
	}
	return o
}

// Allocation returns the allocation for an issue. ok is false when the
// issue is unset or unknown to this offer.
func (o *Offer) Allocation(issueName string) (Allocation, bool) {
	a, present := o.allocations[issueName]
	if !present || a == nil {
		return Allocation{}, false
	}
	return *a, true
}

// Set records an allocation for an issue, replacing any prior value.
func (o *Offer) Set(issueName string, a Allocation) {
	v := a
	o.allocations[issueName] = &v
}

// Unset marks an issue as addressed-but-undecided (nil allocation).
func (o *Offer) Unset(issueName string) {
	o.allocations[issueName] = nil
}

// IssueNames returns every issue this offer mentions, sorted for
// deterministic iteration.
func (o *Offer) IssueNames() []string {
	names := make([]string, 0, len(o.allocations))
	for name := range o.allocations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsComplete reports whether every mentioned issue is allocated with
// nothing left in the middle. An offer mentioning no issues is not
// complete: formal acceptance needs an actual division on the board.
func (o *Offer) IsComplete() bool {
	if len(o.allocations) == 0 {
		return false
	}
	for _, a := range o.allocations {
		if a == nil || !a.IsComplete() {
			return false
		}
	}
	return true
}

// IsPartial reports whether some issue is unset or still has middle units.
func (o *Offer) IsPartial() bool { return !o.IsComplete() }

// AllocatedIssues returns the issues that have an allocation, sorted.
func (o *Offer) AllocatedIssues() []string {
	var names []string
	for name, a := range o.allocations {
		if a != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CompleteIssues returns the issues fully divided (middle == 0), sorted.
func (o *Offer) CompleteIssues() []string {
	var names []string
	for name, a := range o.allocations {
		if a != nil && a.IsComplete() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent deep copy.
func (o *Offer) Clone() *Offer {
	c := NewOffer()
	for name, a := range o.allocations {
		if a == nil {
			c.allocations[name] = nil
			continue
		}
		v := *a
		c.allocations[name] = &v
	}
	return c
}

// ToMap serialises the offer to the wire form used inside event payloads
// and log records: issue name -> [agent, middle, human], nil for unset.
func (o *Offer) ToMap() map[string][]int {
	m := make(map[string][]int, len(o.allocations))
	for name, a := range o.allocations {
		if a == nil {
			m[name] = nil
			continue
		}
		m[name] = a.Tuple()
	}
	return m
}

// OfferFromMap deserialises the wire form. Malformed tuples are an error;
// nil entries come back as unset issues.
func OfferFromMap(m map[string][]int) (*Offer, error) {
	o := NewOffer()
	for name, t := range m {
		if t == nil {
			o.allocations[name] = nil
			continue
		}
		a, err := AllocationFromTuple(t)
		if err != nil {
			return nil, fmt.Errorf("issue %q: %w", name, err)
		}
		o.allocations[name] = &a
	}
	return o, nil
}

// UtilityFunction scores offers for one party. Values are per-unit and
// may be negative for cost-like issues.
type UtilityFunction struct {
	Party  Party
	Values map[string]float64
}

// Calculate sums this party's units times per-unit value across every
// allocated issue. Unset issues and issues without a value contribute 0.
func (u UtilityFunction) Calculate(o *Offer) float64 {
	var total float64
	for name, a := range o.allocations {
		if a == nil {
			continue
		}
		v := u.Values[name]
		if u.Party == PartyAgent {
			total += float64(a.Agent) * v
		} else {
			total += float64(a.Human) * v
		}
	}
	return total
}

// MaxPossible is the utility of winning every unit of every issue.
func (u UtilityFunction) MaxPossible(issues []Issue) float64 {
	var total float64
	for _, is := range issues {
		total += float64(is.Quantity) * u.Values[is.Name]
	}
	return total
}

// IssuePriority returns issue names sorted by this party's per-unit value,
// highest first. Ties break by name so the order is stable.
func (u UtilityFunction) IssuePriority() []string {
	names := make([]string, 0, len(u.Values))
	for name := range u.Values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if u.Values[names[i]] != u.Values[names[j]] {
			return u.Values[names[i]] > u.Values[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// BestIssue returns the highest-valued issue name ("" when empty).
func (u UtilityFunction) BestIssue() string {
	p := u.IssuePriority()
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// WorstIssue returns the lowest-valued issue name ("" when empty).
func (u UtilityFunction) WorstIssue() string {
	p := u.IssuePriority()
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// ProtocolRules govern the negotiation protocol for one game.
type ProtocolRules struct {
	DeadlineSeconds     int // 0 = no deadline
	AllowPartial        bool
	RequireFormalAccept bool
	TimeTickIntervalMS  int
}

// DefaultRules: 5 minute deadline, partial agreements allowed, formal
// acceptance required, TIME tick every 5 seconds.
func DefaultRules() ProtocolRules {
	return ProtocolRules{
		DeadlineSeconds:     300,
		AllowPartial:        true,
		RequireFormalAccept: true,
		TimeTickIntervalMS:  5000,
	}
}

// HasDeadline reports whether the game is time-limited.
func (r ProtocolRules) HasDeadline() bool { return r.DeadlineSeconds > 0 }

// GameSpec is the complete, immutable specification of one negotiation
// game: issues, both parties' utilities, protocol rules, display names.
type GameSpec struct {
	Name        string
	Description string
	Issues      []Issue

	AgentUtility UtilityFunction
	HumanUtility UtilityFunction
	Rules        ProtocolRules

	SingularNames map[string]string
	PluralNames   map[string]string
}

// NewGameSpec validates and assembles a GameSpec. The issue-name set of
// each utility function must exactly equal the issue set: a missing or
// extra valuation is a configuration error and fails loudly here, never
// inside the runtime.
func NewGameSpec(name, description string, issues []Issue, agentValues, humanValues map[string]float64, rules ProtocolRules) (*GameSpec, error) {
	if len(issues) == 0 {
		return nil, fmt.Errorf("game %q: no issues", name)
	}
	issueNames := make(map[string]bool, len(issues))
	for _, is := range issues {
		if is.Quantity < 1 {
			return nil, fmt.Errorf("game %q: issue %q quantity must be at least 1, got %d", name, is.Name, is.Quantity)
		}
		if issueNames[is.Name] {
			return nil, fmt.Errorf("game %q: duplicate issue %q", name, is.Name)
		}
		issueNames[is.Name] = true
	}
	if err := checkCoverage(issueNames, agentValues); err != nil {
		return nil, fmt.Errorf("game %q: agent utility: %w", name, err)
	}
	if err := checkCoverage(issueNames, humanValues); err != nil {
		return nil, fmt.Errorf("game %q: human utility: %w", name, err)
	}

	g := &GameSpec{
		Name:          name,
		Description:   description,
		Issues:        issues,
		AgentUtility:  UtilityFunction{Party: PartyAgent, Values: agentValues},
		HumanUtility:  UtilityFunction{Party: PartyHuman, Values: humanValues},
		Rules:         rules,
		SingularNames: make(map[string]string, len(issues)),
		PluralNames:   make(map[string]string, len(issues)),
	}
	for _, is := range issues {
		g.SingularNames[is.Name] = is.Name
		display := is.DisplayName
		if display == "" {
			display = is.Name
		}
		g.PluralNames[is.Name] = display
	}
	return g, nil
}

func checkCoverage(issueNames map[string]bool, values map[string]float64) error {
	var missing, extra []string
	for name := range issueNames {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range values {
		if !issueNames[name] {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return fmt.Errorf("valuation mismatch (missing %v, extra %v)", missing, extra)
	}
	return nil
}

// Issue returns the issue with the given name.
func (g *GameSpec) Issue(name string) (Issue, bool) {
	for _, is := range g.Issues {
		if is.Name == name {
			return is, true
		}
	}
	return Issue{}, false
}

// IssueNames returns all issue names in declaration order.
func (g *GameSpec) IssueNames() []string {
	names := make([]string, len(g.Issues))
	for i, is := range g.Issues {
		names[i] = is.Name
	}
	return names
}

// NumIssues returns the number of issues in the game.
func (g *GameSpec) NumIssues() int { return len(g.Issues) }

// TotalItems returns the unit count summed across all issues.
func (g *GameSpec) TotalItems() int {
	var n int
	for _, is := range g.Issues {
		n += is.Quantity
	}
	return n
}

// InitialOffer returns the starting board with every unit undecided.
func (g *GameSpec) InitialOffer() *Offer { return AllInMiddleOffer(g.Issues) }

// ValidateOffer checks that every allocated issue accounts for exactly
// that issue's quantity. Unset issues are allowed (partial offers);
// issues the game does not know are ignored.
func (g *GameSpec) ValidateOffer(o *Offer) error {
	for _, is := range g.Issues {
		a, ok := o.Allocation(is.Name)
		if !ok {
			continue
		}
		if a.Total() != is.Quantity {
			return fmt.Errorf("issue %q has %d items, expected %d", is.Name, a.Total(), is.Quantity)
		}
	}
	return nil
}

// DisplayName returns the human-readable name for an issue.
func (g *GameSpec) DisplayName(issueName string, plural bool) string {
	var m map[string]string
	if plural {
		m = g.PluralNames
	} else {
		m = g.SingularNames
	}
	if d, ok := m[issueName]; ok {
		return d
	}
	return issueName
}
