// Package session holds the authoritative state machine of one
// negotiation: the current offer, acceptance flags, event history, and
// derived utilities.
//
// ApplyEvent is the sole mutator. Protocol violations — an offer whose
// counts don't sum to an issue's quantity, a formal accept against an
// incomplete offer, an event reaching a finished session — are recovered
// locally: logged, state unchanged, negotiation continues. The only
// fatal path lives in domain.NewGameSpec, before a session ever exists.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// State of the negotiation session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateTimedOut   State = "timed_out"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateCancelled
}

// FormalAcceptance tracks each party's binding commitment to the current
// offer. Reset whenever the offer changes: prior acceptance is void once
// the terms move.
type FormalAcceptance struct {
	HumanAccepted   bool
	AgentAccepted   bool
	HumanAcceptedAt float64
	AgentAcceptedAt float64
}

// BothAccepted is the unique success-termination trigger.
func (f FormalAcceptance) BothAccepted() bool {
	return f.HumanAccepted && f.AgentAccepted
}

func (f *FormalAcceptance) reset() {
	*f = FormalAcceptance{}
}

// Session is the state machine for one negotiation.
type Session struct {
	Game *domain.GameSpec
	ID   string

	state        State
	currentOffer *domain.Offer
	acceptance   FormalAcceptance
	history      History

	startTime time.Time
	endTime   time.Time

	lastHumanOffer *domain.Offer
	lastAgentOffer *domain.Offer
}

// New creates a session in NOT_STARTED with the game's all-in-middle
// starting board.
func New(game *domain.GameSpec, id string) *Session {
	if id == "" {
		id = uuid.NewString()[:8]
	}
	return &Session{
		Game:         game,
		ID:           id,
		state:        StateNotStarted,
		currentOffer: game.InitialOffer(),
	}
}

// State returns the current session state.
func (s *Session) State() State { return s.state }

// IsActive reports whether the session is IN_PROGRESS.
func (s *Session) IsActive() bool { return s.state == StateInProgress }

// CurrentOffer returns the offer currently on the board.
func (s *Session) CurrentOffer() *domain.Offer { return s.currentOffer }

// Acceptance returns the formal-acceptance flags.
func (s *Session) Acceptance() FormalAcceptance { return s.acceptance }

// History returns the session's event history.
func (s *Session) History() *History { return &s.history }

// Start transitions NOT_STARTED → IN_PROGRESS, records the start time,
// and returns the GAME_START event. The caller publishes it; the event
// reaches history through ApplyEvent like everything else, so it is
// recorded exactly once.
func (s *Session) Start() (event.Event, error) {
	if s.state != StateNotStarted {
		return event.Event{}, fmt.Errorf("cannot start session in state %s", s.state)
	}
	s.state = StateInProgress
	s.startTime = time.Now()
	return event.NewGameStart(s.Game.Name, 0), nil
}

// ApplyEvent is the sole mutator: it appends the event to history and
// updates state by type. While the session is not active, everything
// except GAME_START and TIME is ignored so a late tick or stray offer
// cannot resurrect or corrupt a finished session.
func (s *Session) ApplyEvent(ev event.Event) {
	if !s.IsActive() && ev.Type != event.TypeGameStart && ev.Type != event.TypeTime {
		slog.Debug("[SESSION] ignoring event for inactive session", "session", s.ID, "type", ev.Type)
		return
	}

	s.history.Add(ev)

	switch ev.Type {
	case event.TypeSendOffer:
		s.handleOffer(ev)
	case event.TypeFormalAccept:
		s.handleFormalAccept(ev)
	case event.TypeGameEnd:
		s.complete(ev.Payload.Reason)
	case event.TypeSendMessage, event.TypeSendExpression, event.TypeOfferInProgress, event.TypeTime, event.TypeGameStart:
		// history only
	}
}

func (s *Session) handleOffer(ev event.Event) {
	m := ev.Offer()
	if m == nil {
		return
	}
	offer, err := domain.OfferFromMap(m)
	if err != nil {
		slog.Warn("[SESSION] malformed offer rejected", "session", s.ID, "sender", ev.SenderID, "error", err)
		return
	}
	if err := s.Game.ValidateOffer(offer); err != nil {
		slog.Warn("[SESSION] invalid offer rejected", "session", s.ID, "sender", ev.SenderID, "error", err)
		return
	}

	s.currentOffer = offer
	if ev.SenderID == event.SenderHuman {
		s.lastHumanOffer = offer
	} else {
		s.lastAgentOffer = offer
	}

	// Terms changed: any prior acceptance is void.
	s.acceptance.reset()
}

func (s *Session) handleFormalAccept(ev event.Event) {
	if !s.currentOffer.IsComplete() {
		slog.Warn("[SESSION] formal accept rejected: offer incomplete", "session", s.ID, "sender", ev.SenderID)
		return
	}

	if ev.SenderID == event.SenderHuman {
		s.acceptance.HumanAccepted = true
		s.acceptance.HumanAcceptedAt = ev.Timestamp
	} else {
		s.acceptance.AgentAccepted = true
		s.acceptance.AgentAcceptedAt = ev.Timestamp
	}

	if s.acceptance.BothAccepted() {
		s.complete("mutual_agreement")
	}
}

func (s *Session) complete(reason string) {
	switch reason {
	case "timeout":
		s.state = StateTimedOut
	case "cancelled":
		s.state = StateCancelled
	default:
		s.state = StateCompleted
	}
	s.endTime = time.Now()
	slog.Info("[SESSION] negotiation over", "session", s.ID, "state", s.state, "reason", reason)
}

// Elapsed returns seconds since Start; after the session ends it stops
// growing.
func (s *Session) Elapsed() float64 {
	if s.startTime.IsZero() {
		return 0
	}
	end := s.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.startTime).Seconds()
}

// Remaining returns seconds until the deadline (clamped at 0). ok is
// false when the game has no deadline.
func (s *Session) Remaining() (float64, bool) {
	if !s.Game.Rules.HasDeadline() {
		return 0, false
	}
	r := float64(s.Game.Rules.DeadlineSeconds) - s.Elapsed()
	if r < 0 {
		r = 0
	}
	return r, true
}

// TimedOut reports whether the deadline has passed.
func (s *Session) TimedOut() bool {
	r, ok := s.Remaining()
	return ok && r <= 0
}

// HumanUtility scores an offer for the human; nil means the current
// offer. Pure function of GameSpec + offer, recomputed each call.
func (s *Session) HumanUtility(offer *domain.Offer) float64 {
	if offer == nil {
		offer = s.currentOffer
	}
	return s.Game.HumanUtility.Calculate(offer)
}

// AgentUtility scores an offer for the agent; nil means the current offer.
func (s *Session) AgentUtility(offer *domain.Offer) float64 {
	if offer == nil {
		offer = s.currentOffer
	}
	return s.Game.AgentUtility.Calculate(offer)
}

// UtilityPercentages returns (human, agent) utilities as percentages of
// each party's max possible. A zero max resolves to 0 rather than
// dividing by zero.
func (s *Session) UtilityPercentages(offer *domain.Offer) (float64, float64) {
	if offer == nil {
		offer = s.currentOffer
	}
	humanMax := s.Game.HumanUtility.MaxPossible(s.Game.Issues)
	agentMax := s.Game.AgentUtility.MaxPossible(s.Game.Issues)

	var humanPct, agentPct float64
	if humanMax != 0 {
		humanPct = s.HumanUtility(offer) / humanMax * 100
	}
	if agentMax != 0 {
		agentPct = s.AgentUtility(offer) / agentMax * 100
	}
	return humanPct, agentPct
}

// CanFormallyAccept reports whether a formal accept would currently be
// honoured: session active and offer complete.
func (s *Session) CanFormallyAccept() bool {
	return s.IsActive() && s.currentOffer.IsComplete()
}

// Summary returns a loggable snapshot of the session.
func (s *Session) Summary() map[string]any {
	var remaining any
	if r, ok := s.Remaining(); ok {
		remaining = r
	}
	return map[string]any{
		"session_id":        s.ID,
		"game_name":         s.Game.Name,
		"state":             string(s.state),
		"elapsed_seconds":   s.Elapsed(),
		"remaining_seconds": remaining,
		"offer_count":       s.history.OfferCount(),
		"message_count":     len(s.history.Messages()),
		"human_accepted":    s.acceptance.HumanAccepted,
		"agent_accepted":    s.acceptance.AgentAccepted,
		"current_offer":     s.currentOffer.ToMap(),
		"human_utility":     s.HumanUtility(nil),
		"agent_utility":     s.AgentUtility(nil),
	}
}
