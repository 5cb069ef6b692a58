package agent

import (
	"testing"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

func classicContext(t *testing.T) *Context {
	t.Helper()
	game := domain.ClassicResourceGame()
	return &Context{
		Game:            game,
		AgentUtility:    game.AgentUtility,
		OpponentUtility: game.HumanUtility,
		CurrentOffer:    game.InitialOffer(),
	}
}

// --- utility queries ---

func TestContext_UtilityPercent(t *testing.T) {
	ctx := classicContext(t)

	// everything undecided scores zero for both sides
	if ctx.AgentUtilityPercent(nil) != 0 {
		t.Errorf("initial agent pct = %v, want 0", ctx.AgentUtilityPercent(nil))
	}

	// agent takes all apples: 4*10 = 40 of max 62
	offer := ctx.CurrentOffer.Clone()
	offer.Set("apples", domain.Allocation{Agent: 4})
	pct := ctx.AgentUtilityPercent(offer)
	if pct < 64 || pct > 65 {
		t.Errorf("agent pct = %v, want ~64.5", pct)
	}
	if ctx.OpponentUtilityPercent(offer) != 0 {
		t.Errorf("opponent pct = %v, want 0", ctx.OpponentUtilityPercent(offer))
	}
}

func TestContext_ZeroMaxUtility(t *testing.T) {
	ctx := classicContext(t)
	ctx.AgentUtility = domain.UtilityFunction{}
	if got := ctx.AgentUtilityPercent(nil); got != 0 {
		t.Errorf("pct with zero max = %v, want 0", got)
	}
}

// --- history queries ---

func TestContext_LastOfferBy(t *testing.T) {
	// the most recent offer per sender wins; ticks in between are noise
	ctx := classicContext(t)
	ctx.History = []event.Event{
		event.NewOffer(event.SenderHuman, map[string][]int{"apples": {1, 2, 1}, "oranges": nil, "bananas": nil}, 0),
		event.NewTimeTick(1, nil),
		event.NewOffer(event.SenderHuman, map[string][]int{"apples": {0, 0, 4}, "oranges": nil, "bananas": nil}, 0),
	}

	o, ok := ctx.LastHumanOffer()
	if !ok {
		t.Fatal("no human offer found")
	}
	a, _ := o.Allocation("apples")
	if a.Human != 4 {
		t.Errorf("apples = %+v, want the later offer", a)
	}

	if _, ok := ctx.LastAgentOffer(); ok {
		t.Error("no agent offer exists yet")
	}
	if ctx.OfferCount() != 2 || ctx.OfferCountBy(event.SenderHuman) != 2 {
		t.Errorf("counts = %d/%d, want 2/2", ctx.OfferCount(), ctx.OfferCountBy(event.SenderHuman))
	}
}

// --- completeness ---

func TestContext_CanFormallyAccept(t *testing.T) {
	ctx := classicContext(t)
	if ctx.CanFormallyAccept() {
		t.Error("all-in-middle board is not acceptable")
	}

	for _, is := range ctx.Game.Issues {
		ctx.CurrentOffer.Set(is.Name, domain.Allocation{Agent: is.Quantity})
	}
	if !ctx.CanFormallyAccept() {
		t.Error("fully divided board should be acceptable")
	}
}

// --- preference queries ---

func TestContext_PreferenceOrder(t *testing.T) {
	ctx := classicContext(t)
	if got := ctx.AgentBestIssue(); got != "apples" {
		t.Errorf("agent best = %q, want apples", got)
	}
	if got := ctx.AgentWorstIssue(); got != "bananas" {
		t.Errorf("agent worst = %q, want bananas", got)
	}
	order := ctx.OpponentPreferenceOrder()
	if len(order) != 3 || order[0] != "bananas" {
		t.Errorf("opponent order = %v, want bananas first", order)
	}
}

// --- action chaining ---

func TestChain_StaggersDelays(t *testing.T) {
	actions := []Action{
		SendMessage{Text: "a"},
		SendMessage{Text: "b"},
		SendMessage{Text: "c"},
	}
	out := Chain(actions, 0, 400)

	// first has no delay and stays unwrapped
	if _, ok := out[0].(SendMessage); !ok {
		t.Errorf("first action wrapped: %T", out[0])
	}
	s1, ok := out[1].(Schedule)
	if !ok || s1.DelayMS != 400 {
		t.Errorf("second = %+v, want Schedule{400}", out[1])
	}
	s2, ok := out[2].(Schedule)
	if !ok || s2.DelayMS != 800 {
		t.Errorf("third = %+v, want Schedule{800}", out[2])
	}
}
