package event

import (
	"encoding/json"
	"testing"
)

func roundTrip(t *testing.T, ev Event) Event {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return back
}

// --- factories ---

func TestNewMessage_DefaultsSubtype(t *testing.T) {
	ev := NewMessage(SenderHuman, "hi", "", 0)
	if ev.Subtype != SubtypeGeneric {
		t.Errorf("subtype = %q, want generic", ev.Subtype)
	}
	if ev.Type != TypeSendMessage || ev.Text() != "hi" {
		t.Errorf("event = %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp == 0 {
		t.Error("factory must assign ID and timestamp")
	}
}

func TestNewTimeTick_CarriesZeroRemaining(t *testing.T) {
	// remaining=0 is meaningful (deadline hit) and must be distinguishable
	// from "no deadline" (nil)
	rem := 0.0
	ev := NewTimeTick(12.5, &rem)
	back := roundTrip(t, ev)
	if back.Payload.RemainingSeconds == nil || *back.Payload.RemainingSeconds != 0 {
		t.Errorf("remaining = %v, want pointer to 0", back.Payload.RemainingSeconds)
	}
	if back.Payload.ElapsedSeconds == nil || *back.Payload.ElapsedSeconds != 12.5 {
		t.Errorf("elapsed = %v, want 12.5", back.Payload.ElapsedSeconds)
	}

	noDeadline := roundTrip(t, NewTimeTick(5, nil))
	if noDeadline.Payload.RemainingSeconds != nil {
		t.Error("nil remaining must stay nil after round trip")
	}
}

// --- JSON round trip ---

func TestEvent_RoundTripOffer(t *testing.T) {
	// offers round-trip including nil (unset) issue entries
	offer := map[string][]int{
		"apples":  {4, 0, 0},
		"oranges": nil,
	}
	back := roundTrip(t, NewOffer(SenderAgent, offer, 250))
	if back.Type != TypeSendOffer || back.SenderID != SenderAgent || back.DelayMS != 250 {
		t.Errorf("event = %+v", back)
	}
	got := back.Offer()
	if len(got["apples"]) != 3 || got["apples"][0] != 4 {
		t.Errorf("apples = %v", got["apples"])
	}
	if v, present := got["oranges"]; !present || v != nil {
		t.Errorf("oranges = %v present=%v, want nil entry preserved", v, present)
	}
}

func TestEvent_RoundTripPreference(t *testing.T) {
	pref := Preference{Issue1: "apples", Issue2: "oranges", Relation: RelationGreater}
	back := roundTrip(t, NewPreferenceMessage(SenderHuman, "apples > oranges", SubtypePrefInfo, pref, 0))
	got := back.Preference()
	if got == nil || *got != pref {
		t.Errorf("preference = %+v, want %+v", got, pref)
	}
}

func TestEvent_RoundTripGameEnd(t *testing.T) {
	back := roundTrip(t, NewGameEnd("timeout", map[string][]int{"apples": {2, 0, 2}}))
	if back.Reason() != "timeout" {
		t.Errorf("reason = %q", back.Reason())
	}
	if back.Payload.FinalOffer["apples"][2] != 2 {
		t.Errorf("final offer = %v", back.Payload.FinalOffer)
	}
}

func TestEvent_RoundTripExpression(t *testing.T) {
	back := roundTrip(t, NewExpression(SenderAgent, ExprHappy, 1500, 0))
	if back.Expression() != ExprHappy || back.Payload.DurationMS != 1500 {
		t.Errorf("event = %+v", back)
	}
}

// --- accessors ---

func TestAccessors_ZeroValueOnTypeMismatch(t *testing.T) {
	msg := NewMessage(SenderHuman, "hi", SubtypeGeneric, 0)
	if msg.Offer() != nil {
		t.Error("Offer() on a message should be nil")
	}
	if msg.Expression() != "" {
		t.Error("Expression() on a message should be empty")
	}
	if msg.Reason() != "" {
		t.Error("Reason() on a message should be empty")
	}
	offer := NewOffer(SenderHuman, map[string][]int{"a": {1, 0, 0}}, 0)
	if offer.Text() != "" {
		t.Error("Text() on an offer should be empty")
	}
	if offer.Preference() != nil {
		t.Error("Preference() on an offer should be nil")
	}
}

// --- expressions ---

func TestValidExpression(t *testing.T) {
	if !ValidExpression("happy") || !ValidExpression("contempt") {
		t.Error("known expressions should validate")
	}
	if ValidExpression("joyful") {
		t.Error("unknown expression should not validate")
	}
	if len(HumanExpressions()) >= len(AgentExpressions()) {
		t.Error("agents have the extended expression set")
	}
}
