package negochat

import (
	"strings"
	"testing"

	"github.com/parley-sim/parley/internal/agent"
	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

func classicAgentContext(t *testing.T) *agent.Context {
	t.Helper()
	game := domain.ClassicResourceGame()
	return &agent.Context{
		Game:            game,
		AgentUtility:    game.AgentUtility,
		OpponentUtility: game.HumanUtility,
		CurrentOffer:    game.InitialOffer(),
	}
}

func offerEvent(t *testing.T, m map[string][]int) event.Event {
	t.Helper()
	return event.NewOffer(event.SenderHuman, m, 0)
}

// lastOfferAction digs the SendOffer out of an action list.
func lastOfferAction(actions []agent.Action) (agent.SendOffer, bool) {
	for i := len(actions) - 1; i >= 0; i-- {
		if o, ok := actions[i].(agent.SendOffer); ok {
			return o, true
		}
	}
	return agent.SendOffer{}, false
}

func hasAction[T agent.Action](actions []agent.Action) bool {
	for _, a := range actions {
		if _, ok := a.(T); ok {
			return true
		}
	}
	return false
}

// --- game start ---

func TestAgent_GameStartLeadsWithOpening(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	actions := a.HandleEvent(ctx, event.NewGameStart(ctx.Game.Name, 0))

	if _, ok := actions[0].(agent.SendExpression); !ok {
		t.Errorf("first action = %T, want an expression", actions[0])
	}
	offer, ok := lastOfferAction(actions)
	if !ok {
		t.Fatal("no opening offer in the game-start actions")
	}
	apples, _ := offer.Offer.Allocation("apples")
	if apples != (domain.Allocation{Agent: 4}) {
		t.Errorf("opening apples = %+v, want all claimed", apples)
	}
}

// --- incoming offers ---

func TestAgent_AcceptsFairCompleteOffer(t *testing.T) {
	// 36 of 62 (~58%) and complete: happy face, accept text, formal accept
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	actions := a.HandleEvent(ctx, offerEvent(t, map[string][]int{
		"apples": {3, 0, 1}, "oranges": {1, 0, 2}, "bananas": {0, 0, 2},
	}))

	if !hasAction[agent.FormalAccept](actions) {
		t.Errorf("no formal accept in %d actions", len(actions))
	}
	expr, ok := actions[0].(agent.SendExpression)
	if !ok || expr.Expression != event.ExprHappy {
		t.Errorf("first action = %+v, want a happy expression", actions[0])
	}
}

func TestAgent_LowballGetsAngryCounter(t *testing.T) {
	// everything to the human is under the unfairness bar: angry face,
	// the angry reject line, and a counter-offer
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	actions := a.HandleEvent(ctx, offerEvent(t, map[string][]int{
		"apples": {0, 0, 4}, "oranges": {0, 0, 3}, "bananas": {0, 0, 2},
	}))

	expr, ok := actions[0].(agent.SendExpression)
	if !ok || expr.Expression != event.ExprAngry {
		t.Fatalf("first action = %+v, want an angry expression", actions[0])
	}
	msg, ok := actions[1].(agent.SendMessage)
	if !ok || msg.Text != "That is simply not fair. I cannot accept that." {
		t.Errorf("reject line = %+v", actions[1])
	}
	counter, ok := lastOfferAction(actions)
	if !ok {
		t.Fatal("no counter-offer")
	}
	apples, _ := counter.Offer.Allocation("apples")
	if apples.Agent != 1 {
		t.Errorf("counter apples = %+v, want one reclaimed", apples)
	}
}

// --- preference messages ---

func TestAgent_AnswersPreferenceQuery(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	ev := event.NewPreferenceMessage(event.SenderHuman, "what do you want most?",
		event.SubtypePrefRequest, event.Preference{Relation: event.RelationBest, IsQuery: true}, 0)
	actions := a.HandleEvent(ctx, ev)

	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	msg := actions[0].(agent.SendMessage)
	if msg.Subtype != event.SubtypePrefInfo {
		t.Errorf("subtype = %q, want pref_info", msg.Subtype)
	}
	if !strings.Contains(msg.Text, "apples") {
		t.Errorf("reply %q should name the agent's top issue", msg.Text)
	}
}

func TestAgent_AcknowledgesPreferenceInfo(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	ev := event.NewPreferenceMessage(event.SenderHuman, "apples > oranges",
		event.SubtypePrefInfo, event.Preference{Issue1: "apples", Issue2: "oranges", Relation: event.RelationGreater}, 0)
	actions := a.HandleEvent(ctx, ev)

	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if actions[0].(agent.SendMessage).Subtype != event.SubtypeConfirmation {
		t.Errorf("reply = %+v, want a confirmation", actions[0])
	}
}

func TestAgent_IgnoresFreeText(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)
	actions := a.HandleEvent(ctx, event.NewMessage(event.SenderHuman, "nice weather", event.SubtypeGeneric, 0))
	if len(actions) != 0 {
		t.Errorf("free text produced %d actions, want none", len(actions))
	}
}

// --- expressions ---

func TestAgent_MirrorsEmotion(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	actions := a.HandleEvent(ctx, event.NewExpression(event.SenderHuman, event.ExprHappy, 1500, 0))
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want text + mirror", len(actions))
	}
	expr := actions[1].(agent.SendExpression)
	if expr.Expression != event.ExprHappy {
		t.Errorf("mirrored = %q, want happy", expr.Expression)
	}

	// anger is answered with neutral, never mirrored
	actions = a.HandleEvent(ctx, event.NewExpression(event.SenderHuman, event.ExprAngry, 1500, 0))
	expr = actions[1].(agent.SendExpression)
	if expr.Expression != event.ExprNeutral {
		t.Errorf("reply to anger = %q, want neutral", expr.Expression)
	}
}

func TestAgent_NoMirrorWhenDisabled(t *testing.T) {
	cfg := DefaultAgentConfig()
	cfg.EmotionalMirroring = false
	a := NewAgent(cfg)
	ctx := classicAgentContext(t)

	actions := a.HandleEvent(ctx, event.NewExpression(event.SenderHuman, event.ExprHappy, 1500, 0))
	if len(actions) != 1 {
		t.Errorf("got %d actions, want text only", len(actions))
	}
}

// --- formal accept ---

func TestAgent_ReciprocatesFormalAccept(t *testing.T) {
	// the board clears the agent's bar: accept back
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)
	ctx.CurrentOffer, _ = domain.OfferFromMap(map[string][]int{
		"apples": {3, 0, 1}, "oranges": {1, 0, 2}, "bananas": {0, 0, 2},
	})
	ctx.HumanHasAccepted = true

	actions := a.HandleEvent(ctx, event.NewFormalAccept(event.SenderHuman, 0))
	if !hasAction[agent.FormalAccept](actions) {
		t.Error("agent should reciprocate a good deal")
	}
}

func TestAgent_DeclinesBadFormalAccept(t *testing.T) {
	// complete board, but the agent's share is under its bar
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)
	ctx.CurrentOffer, _ = domain.OfferFromMap(map[string][]int{
		"apples": {1, 0, 3}, "oranges": {0, 0, 3}, "bananas": {0, 0, 2},
	})

	actions := a.HandleEvent(ctx, event.NewFormalAccept(event.SenderHuman, 0))
	if hasAction[agent.FormalAccept](actions) {
		t.Error("agent must not accept a deal under its bar")
	}
	if len(actions) == 0 {
		t.Fatal("agent should say why it is not closing")
	}
}

// --- time ---

func TestAgent_PromptsIdleOpponent(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	stale := event.NewMessage(event.SenderHuman, "hmm", event.SubtypeGeneric, 0)
	stale.Timestamp -= 40 // idle past the 30s bar
	ctx.History = []event.Event{stale}

	actions := a.HandleEvent(ctx, event.NewTimeTick(40, nil))
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want a prompt", len(actions))
	}
	if !contains(timePrompt, actions[0].(agent.SendMessage).Text) {
		t.Errorf("prompt = %+v", actions[0])
	}

	// under a minute left the prompt becomes time pressure
	rem := 45.0
	ctx.RemainingSeconds = &rem
	actions = a.HandleEvent(ctx, event.NewTimeTick(40, &rem))
	msg := actions[0].(agent.SendMessage)
	if msg.Subtype != event.SubtypeTimingInfo || !contains(timePressure, msg.Text) {
		t.Errorf("pressure = %+v", actions[0])
	}
}

func TestAgent_QuietWhileOpponentActive(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)
	ctx.History = []event.Event{event.NewMessage(event.SenderHuman, "thinking...", event.SubtypeGeneric, 0)}

	if actions := a.HandleEvent(ctx, event.NewTimeTick(5, nil)); len(actions) != 0 {
		t.Errorf("got %d actions during active play, want none", len(actions))
	}
}

// --- game end ---

func TestAgent_FarewellMatchesOutcome(t *testing.T) {
	a := NewAgent(DefaultAgentConfig())
	ctx := classicAgentContext(t)

	actions := a.HandleEvent(ctx, event.NewGameEnd("mutual_agreement", nil))
	if expr := actions[1].(agent.SendExpression); expr.Expression != event.ExprHappy {
		t.Errorf("agreement farewell face = %q, want happy", expr.Expression)
	}
	if !contains(farewellSuccess, actions[0].(agent.SendMessage).Text) {
		t.Error("agreement farewell text not from the success pool")
	}

	actions = a.HandleEvent(ctx, event.NewGameEnd("timeout", nil))
	if expr := actions[1].(agent.SendExpression); expr.Expression != event.ExprSad {
		t.Errorf("timeout farewell face = %q, want sad", expr.Expression)
	}
}
