package domain

import (
	"testing"
)

// --- Allocation ---

func TestAllocation_IsComplete(t *testing.T) {
	// An allocation is complete exactly when nothing is left in the middle
	if (Allocation{Agent: 2, Middle: 0, Human: 2}).IsComplete() != true {
		t.Error("middle=0 should be complete")
	}
	if (Allocation{Agent: 2, Middle: 1, Human: 1}).IsComplete() != false {
		t.Error("middle=1 should not be complete")
	}
}

func TestAllocationFromTuple_RejectsMalformed(t *testing.T) {
	// Short and negative tuples error instead of silently defaulting
	if _, err := AllocationFromTuple([]int{1, 2}); err == nil {
		t.Error("expected error for 2-entry tuple")
	}
	if _, err := AllocationFromTuple([]int{1, -1, 2}); err == nil {
		t.Error("expected error for negative count")
	}
	a, err := AllocationFromTuple([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("valid tuple: %v", err)
	}
	if a.Agent != 1 || a.Middle != 2 || a.Human != 3 {
		t.Errorf("allocation = %+v, want {1 2 3}", a)
	}
}

func TestSplitEven_OddRemainderStaysInMiddle(t *testing.T) {
	a := SplitEven(3)
	if a.Agent != 1 || a.Middle != 1 || a.Human != 1 {
		t.Errorf("SplitEven(3) = %+v, want {1 1 1}", a)
	}
	b := SplitEven(4)
	if b.Agent != 2 || b.Middle != 0 || b.Human != 2 {
		t.Errorf("SplitEven(4) = %+v, want {2 0 2}", b)
	}
}

// --- Offer ---

func TestOffer_EmptyIsNotComplete(t *testing.T) {
	// An offer mentioning no issues is not complete: formal acceptance
	// needs an actual division on the board
	if NewOffer().IsComplete() {
		t.Error("empty offer must not be complete")
	}
}

func TestOffer_UnsetIssueBlocksCompleteness(t *testing.T) {
	o := NewOffer()
	o.Set("apples", Allocation{Agent: 4})
	o.Unset("oranges")
	if o.IsComplete() {
		t.Error("offer with an unset issue must not be complete")
	}
	if _, ok := o.Allocation("oranges"); ok {
		t.Error("unset issue should report ok=false")
	}
}

func TestOffer_CloneIsIndependent(t *testing.T) {
	o := NewOffer()
	o.Set("apples", Allocation{Agent: 4})
	c := o.Clone()
	c.Set("apples", Allocation{Human: 4})

	a, _ := o.Allocation("apples")
	if a.Agent != 4 {
		t.Errorf("mutating the clone changed the original: %+v", a)
	}
}

func TestOffer_MapRoundTrip(t *testing.T) {
	// ToMap/OfferFromMap preserves allocations and unset issues
	o := NewOffer()
	o.Set("apples", Allocation{Agent: 1, Middle: 2, Human: 1})
	o.Unset("oranges")

	back, err := OfferFromMap(o.ToMap())
	if err != nil {
		t.Fatalf("OfferFromMap: %v", err)
	}
	a, ok := back.Allocation("apples")
	if !ok || a != (Allocation{Agent: 1, Middle: 2, Human: 1}) {
		t.Errorf("apples = %+v ok=%v after round trip", a, ok)
	}
	if _, ok := back.Allocation("oranges"); ok {
		t.Error("oranges should stay unset after round trip")
	}
	names := back.IssueNames()
	if len(names) != 2 {
		t.Errorf("issue names = %v, want both issues mentioned", names)
	}
}

func TestOfferFromMap_RejectsMalformedTuple(t *testing.T) {
	if _, err := OfferFromMap(map[string][]int{"apples": {1, 2}}); err == nil {
		t.Error("expected error for short tuple")
	}
}

// --- UtilityFunction ---

func TestUtilityFunction_CalculatePerParty(t *testing.T) {
	o := NewOffer()
	o.Set("apples", Allocation{Agent: 3, Middle: 0, Human: 1})
	o.Set("oranges", Allocation{Agent: 0, Middle: 1, Human: 2})

	agent := UtilityFunction{Party: PartyAgent, Values: map[string]float64{"apples": 10, "oranges": 6}}
	human := UtilityFunction{Party: PartyHuman, Values: map[string]float64{"apples": 2, "oranges": 6}}

	if got := agent.Calculate(o); got != 30 {
		t.Errorf("agent utility = %v, want 30", got)
	}
	if got := human.Calculate(o); got != 14 {
		t.Errorf("human utility = %v, want 14", got)
	}
}

func TestUtilityFunction_UnsetIssuesContributeZero(t *testing.T) {
	o := NewOffer()
	o.Unset("apples")
	u := UtilityFunction{Party: PartyAgent, Values: map[string]float64{"apples": 10}}
	if got := u.Calculate(o); got != 0 {
		t.Errorf("utility = %v, want 0 for unset issue", got)
	}
}

func TestUtilityFunction_IssuePriorityTieBreaksByName(t *testing.T) {
	u := UtilityFunction{Party: PartyAgent, Values: map[string]float64{"b": 5, "a": 5, "c": 9}}
	p := u.IssuePriority()
	if p[0] != "c" || p[1] != "a" || p[2] != "b" {
		t.Errorf("priority = %v, want [c a b]", p)
	}
	if u.BestIssue() != "c" || u.WorstIssue() != "b" {
		t.Errorf("best/worst = %s/%s, want c/b", u.BestIssue(), u.WorstIssue())
	}
}

// --- GameSpec ---

func TestNewGameSpec_RejectsValuationMismatch(t *testing.T) {
	issues := []Issue{{Name: "apples", Quantity: 4}}
	// missing valuation
	if _, err := NewGameSpec("g", "", issues, map[string]float64{}, map[string]float64{"apples": 1}, DefaultRules()); err == nil {
		t.Error("expected error for missing agent valuation")
	}
	// extra valuation
	if _, err := NewGameSpec("g", "", issues,
		map[string]float64{"apples": 1, "pears": 2},
		map[string]float64{"apples": 1}, DefaultRules()); err == nil {
		t.Error("expected error for extra agent valuation")
	}
}

func TestNewGameSpec_RejectsBadIssues(t *testing.T) {
	vals := map[string]float64{"apples": 1}
	if _, err := NewGameSpec("g", "", []Issue{{Name: "apples", Quantity: 0}}, vals, vals, DefaultRules()); err == nil {
		t.Error("expected error for zero quantity")
	}
	dup := []Issue{{Name: "apples", Quantity: 1}, {Name: "apples", Quantity: 2}}
	if _, err := NewGameSpec("g", "", dup, vals, vals, DefaultRules()); err == nil {
		t.Error("expected error for duplicate issue")
	}
	if _, err := NewGameSpec("g", "", nil, nil, nil, DefaultRules()); err == nil {
		t.Error("expected error for empty issue list")
	}
}

func TestGameSpec_ValidateOffer(t *testing.T) {
	g := ClassicResourceGame()

	// partial offers are fine: unset issues are skipped
	partial := NewOffer()
	partial.Set("apples", Allocation{Agent: 2, Middle: 1, Human: 1})
	if err := g.ValidateOffer(partial); err != nil {
		t.Errorf("partial offer should validate: %v", err)
	}

	// a stated issue must account for the full quantity
	bad := NewOffer()
	bad.Set("apples", Allocation{Agent: 2, Middle: 0, Human: 1})
	if err := g.ValidateOffer(bad); err == nil {
		t.Error("expected error for wrong item count")
	}
}

func TestGameSpec_InitialOfferAllInMiddle(t *testing.T) {
	g := ClassicResourceGame()
	o := g.InitialOffer()
	for _, is := range g.Issues {
		a, ok := o.Allocation(is.Name)
		if !ok {
			t.Fatalf("%s missing from initial offer", is.Name)
		}
		if a.Middle != is.Quantity || a.Agent != 0 || a.Human != 0 {
			t.Errorf("%s = %+v, want all %d in the middle", is.Name, a, is.Quantity)
		}
	}
	if o.IsComplete() {
		t.Error("initial offer must not be complete")
	}
}

func TestGameSpec_DisplayName(t *testing.T) {
	g := ClassicResourceGame()
	if got := g.DisplayName("apples", false); got != "apple" {
		t.Errorf("singular = %q, want %q", got, "apple")
	}
	if got := g.DisplayName("apples", true); got != "Apples" {
		t.Errorf("plural = %q, want %q", got, "Apples")
	}
	if got := g.DisplayName("unknown", true); got != "unknown" {
		t.Errorf("unknown issue = %q, want the raw name back", got)
	}
}
