// Package event defines the typed records describing everything that
// happens in a negotiation, and their factories.
//
// Events are immutable: created once, published, appended to history,
// never changed. The JSON form round-trips losslessly for every event
// type (logging and replay depend on that), so Payload keeps one
// omitempty field per piece of type-dependent data rather than an
// untyped map.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of an event.
type Type string

const (
	TypeSendMessage     Type = "send_message"
	TypeSendOffer       Type = "send_offer"
	TypeSendExpression  Type = "send_expression"
	TypeOfferInProgress Type = "offer_in_progress"
	TypeTime            Type = "time"
	TypeFormalAccept    Type = "formal_accept"
	TypeGameStart       Type = "game_start"
	TypeGameEnd         Type = "game_end"
)

// Subtype categorises SEND_MESSAGE events for logging and analysis.
type Subtype string

const (
	SubtypeGeneric Subtype = "generic"

	SubtypeOfferPropose Subtype = "offer_propose"
	SubtypeOfferAccept  Subtype = "offer_accept"
	SubtypeOfferReject  Subtype = "offer_reject"

	SubtypePrefInfo            Subtype = "pref_info"
	SubtypePrefRequest         Subtype = "pref_request"
	SubtypePrefSpecificRequest Subtype = "pref_specific_request"
	SubtypePrefWithhold        Subtype = "pref_withhold"

	SubtypeTimingRequest Subtype = "timing_request"
	SubtypeTimingInfo    Subtype = "timing_info"

	SubtypeGreeting Subtype = "greeting"
	SubtypeFarewell Subtype = "farewell"
	SubtypeThanks   Subtype = "thanks"
	SubtypeApology  Subtype = "apology"
	SubtypeThreat   Subtype = "threat"
	SubtypePromise  Subtype = "promise"

	SubtypeConfirmation  Subtype = "confirmation"
	SubtypeClarification Subtype = "clarification"
)

// Expression is an emotional display. Humans get the basic five; agents
// get the extended set.
type Expression string

const (
	ExprNeutral   Expression = "neutral"
	ExprHappy     Expression = "happy"
	ExprSad       Expression = "sad"
	ExprAngry     Expression = "angry"
	ExprSurprised Expression = "surprised"
	ExprDisgusted Expression = "disgusted"
	ExprScared    Expression = "scared"
	ExprContempt  Expression = "contempt"
)

// HumanExpressions lists the expressions a human participant may send.
func HumanExpressions() []Expression {
	return []Expression{ExprNeutral, ExprHappy, ExprSad, ExprAngry, ExprSurprised}
}

// AgentExpressions lists every expression, all available to agents.
func AgentExpressions() []Expression {
	return []Expression{ExprNeutral, ExprHappy, ExprSad, ExprAngry, ExprSurprised, ExprDisgusted, ExprScared, ExprContempt}
}

// ValidExpression reports whether s is a known expression tag.
func ValidExpression(s string) bool {
	for _, e := range AgentExpressions() {
		if Expression(s) == e {
			return true
		}
	}
	return false
}

// Sender IDs.
const (
	SenderHuman  = "human"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Preference is structured preference information carried inside PREF_*
// messages: "I like apples more than oranges" is {apples, oranges, GREATER}.
// Issue2 is empty for BEST/WORST relations.
type Preference struct {
	Issue1   string `json:"issue1"`
	Issue2   string `json:"issue2,omitempty"`
	Relation string `json:"relation"`
	IsQuery  bool   `json:"is_query,omitempty"`
}

// Preference relations.
const (
	RelationGreater = "GREATER"
	RelationLess    = "LESS"
	RelationEqual   = "EQUAL"
	RelationBest    = "BEST"
	RelationWorst   = "WORST"
)

// Payload carries the type-dependent data of an event. Only the fields
// relevant to the event's Type are set; the rest stay at their zero
// value and are omitted from the JSON form.
type Payload struct {
	// send_message
	Text       string      `json:"text,omitempty"`
	Preference *Preference `json:"preference,omitempty"`

	// send_offer (nil tuple = issue unset)
	Offer map[string][]int `json:"offer,omitempty"`

	// send_expression
	Expression Expression `json:"expression,omitempty"`
	DurationMS int        `json:"duration_ms,omitempty"`

	// offer_in_progress
	PartialOffer map[string][]int `json:"partial_offer,omitempty"`

	// time (pointers: 0 must survive the round trip)
	ElapsedSeconds   *float64 `json:"elapsed_seconds,omitempty"`
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`

	// game_start
	GameName  string `json:"game_name,omitempty"`
	GameIndex int    `json:"game_index,omitempty"`

	// game_end
	Reason     string           `json:"reason,omitempty"`
	FinalOffer map[string][]int `json:"final_offer,omitempty"`
}

// Event is a single negotiation event.
type Event struct {
	ID        string  `json:"event_id"`
	Type      Type    `json:"event_type"`
	SenderID  string  `json:"sender_id"`
	Timestamp float64 `json:"timestamp"`
	DelayMS   int     `json:"delay_ms"`
	Subtype   Subtype `json:"subtype,omitempty"`
	Payload   Payload `json:"payload"`
}

func newID() string {
	return uuid.NewString()[:8]
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// NewMessage creates a SEND_MESSAGE event.
func NewMessage(senderID, text string, subtype Subtype, delayMS int) Event {
	if subtype == "" {
		subtype = SubtypeGeneric
	}
	return Event{
		ID:        newID(),
		Type:      TypeSendMessage,
		SenderID:  senderID,
		Timestamp: now(),
		DelayMS:   delayMS,
		Subtype:   subtype,
		Payload:   Payload{Text: text},
	}
}

// NewPreferenceMessage creates a SEND_MESSAGE event carrying structured
// preference data.
func NewPreferenceMessage(senderID, text string, subtype Subtype, pref Preference, delayMS int) Event {
	e := NewMessage(senderID, text, subtype, delayMS)
	p := pref
	e.Payload.Preference = &p
	return e
}

// NewOffer creates a SEND_OFFER event from an offer in wire form.
func NewOffer(senderID string, offer map[string][]int, delayMS int) Event {
	return Event{
		ID:        newID(),
		Type:      TypeSendOffer,
		SenderID:  senderID,
		Timestamp: now(),
		DelayMS:   delayMS,
		Payload:   Payload{Offer: offer},
	}
}

// NewExpression creates a SEND_EXPRESSION event.
func NewExpression(senderID string, expr Expression, durationMS, delayMS int) Event {
	return Event{
		ID:        newID(),
		Type:      TypeSendExpression,
		SenderID:  senderID,
		Timestamp: now(),
		DelayMS:   delayMS,
		Payload:   Payload{Expression: expr, DurationMS: durationMS},
	}
}

// NewOfferInProgress creates an OFFER_IN_PROGRESS event. partial may be
// nil when the sender is only signalling activity ("typing...").
func NewOfferInProgress(senderID string, partial map[string][]int) Event {
	return Event{
		ID:        newID(),
		Type:      TypeOfferInProgress,
		SenderID:  senderID,
		Timestamp: now(),
		Payload:   Payload{PartialOffer: partial},
	}
}

// NewTimeTick creates a TIME event. remaining is nil when the game has
// no deadline.
func NewTimeTick(elapsedSeconds float64, remainingSeconds *float64) Event {
	e := elapsedSeconds
	return Event{
		ID:        newID(),
		Type:      TypeTime,
		SenderID:  SenderSystem,
		Timestamp: now(),
		Payload:   Payload{ElapsedSeconds: &e, RemainingSeconds: remainingSeconds},
	}
}

// NewFormalAccept creates a FORMAL_ACCEPT event.
func NewFormalAccept(senderID string, delayMS int) Event {
	return Event{
		ID:        newID(),
		Type:      TypeFormalAccept,
		SenderID:  senderID,
		Timestamp: now(),
		DelayMS:   delayMS,
	}
}

// NewGameStart creates a GAME_START event.
func NewGameStart(gameName string, gameIndex int) Event {
	return Event{
		ID:        newID(),
		Type:      TypeGameStart,
		SenderID:  SenderSystem,
		Timestamp: now(),
		Payload:   Payload{GameName: gameName, GameIndex: gameIndex},
	}
}

// NewGameEnd creates a GAME_END event. finalOffer may be nil.
func NewGameEnd(reason string, finalOffer map[string][]int) Event {
	return Event{
		ID:        newID(),
		Type:      TypeGameEnd,
		SenderID:  SenderSystem,
		Timestamp: now(),
		Payload:   Payload{Reason: reason, FinalOffer: finalOffer},
	}
}

// Text returns the message text for SEND_MESSAGE events, "" otherwise.
func (e Event) Text() string {
	if e.Type != TypeSendMessage {
		return ""
	}
	return e.Payload.Text
}

// Offer returns the offer wire form for SEND_OFFER events, nil otherwise.
func (e Event) Offer() map[string][]int {
	if e.Type != TypeSendOffer {
		return nil
	}
	return e.Payload.Offer
}

// Expression returns the expression for SEND_EXPRESSION events.
func (e Event) Expression() Expression {
	if e.Type != TypeSendExpression {
		return ""
	}
	return e.Payload.Expression
}

// Preference returns structured preference data for SEND_MESSAGE events
// that carry one, nil otherwise.
func (e Event) Preference() *Preference {
	if e.Type != TypeSendMessage {
		return nil
	}
	return e.Payload.Preference
}

// Reason returns the end reason for GAME_END events, "" otherwise.
func (e Event) Reason() string {
	if e.Type != TypeGameEnd {
		return ""
	}
	return e.Payload.Reason
}
