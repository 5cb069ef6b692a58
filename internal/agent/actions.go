// Package agent defines the action protocol agents speak, the read-only
// context they decide from, and the runtime that wires an agent into a
// live negotiation.
package agent

import (
	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// Action is something an agent wants done in response to an event. The
// runtime translates each action into an Event and publishes it,
// respecting delays. The set is sealed: the runtime matches exhaustively.
type Action interface {
	isAction()
}

// SendMessage sends a chat message. DelayMS simulates typing time.
type SendMessage struct {
	Text       string
	Subtype    event.Subtype
	Preference *event.Preference
	DelayMS    int
}

// SendOffer proposes an offer (may be partial).
type SendOffer struct {
	Offer   *domain.Offer
	DelayMS int
}

// SendExpression displays an emotion for DurationMS.
type SendExpression struct {
	Expression event.Expression
	DurationMS int
	DelayMS    int
}

// Schedule defers an inner action: its delay is added on top of the
// inner action's own delay, allowing chained "wait, counter, smile"
// sequences.
type Schedule struct {
	DelayMS int
	Action  Action
}

// FormalAccept formally accepts the current offer. Honoured only while
// the offer is complete.
type FormalAccept struct {
	DelayMS int
}

// FormalReject walks away, ending the negotiation.
type FormalReject struct {
	Reason  string
	DelayMS int
}

// ShowTyping raises the "typing..." indicator. DurationMS of 0 keeps it
// up until the agent's next action lands.
type ShowTyping struct {
	DurationMS int
}

func (SendMessage) isAction()    {}
func (SendOffer) isAction()      {}
func (SendExpression) isAction() {}
func (Schedule) isAction()       {}
func (FormalAccept) isAction()   {}
func (FormalReject) isAction()   {}
func (ShowTyping) isAction()     {}

// Chain staggers actions into a natural sequence: the first fires after
// baseDelayMS, each following one gapMS later.
func Chain(actions []Action, baseDelayMS, gapMS int) []Action {
	out := make([]Action, 0, len(actions))
	delay := baseDelayMS
	for _, a := range actions {
		if delay > 0 {
			out = append(out, Schedule{DelayMS: delay, Action: a})
		} else {
			out = append(out, a)
		}
		delay += gapMS
	}
	return out
}
