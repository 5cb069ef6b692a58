// Package ui renders negotiation state for the terminal: a chat
// transcript line per event and an aligned board view of the current
// offer. Pure formatting; no I/O.
package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// ANSI codes
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
)

var senderLabel = map[string]string{
	event.SenderHuman:  "👤 you",
	event.SenderAgent:  "🤖 agent",
	event.SenderSystem: "⚙ system",
}

var exprEmoji = map[event.Expression]string{
	event.ExprNeutral:   "😐",
	event.ExprHappy:     "🙂",
	event.ExprSad:       "🙁",
	event.ExprAngry:     "😠",
	event.ExprSurprised: "😮",
	event.ExprDisgusted: "🤢",
	event.ExprScared:    "😨",
	event.ExprContempt:  "😒",
}

func label(senderID string) string {
	if l, ok := senderLabel[senderID]; ok {
		return l
	}
	return "• " + senderID
}

func senderColor(senderID string) string {
	switch senderID {
	case event.SenderHuman:
		return ansiCyan
	case event.SenderAgent:
		return ansiYellow
	default:
		return ansiDim
	}
}

// FormatEvent renders one event as a transcript line. Returns "" for
// events with no visible transcript form (TIME ticks are surfaced via
// the prompt/status line instead).
func FormatEvent(game *domain.GameSpec, ev event.Event) string {
	c := senderColor(ev.SenderID)
	who := c + label(ev.SenderID) + ansiReset

	switch ev.Type {
	case event.TypeSendMessage:
		return fmt.Sprintf("%s: %s", who, ev.Payload.Text)

	case event.TypeSendOffer:
		offer, err := domain.OfferFromMap(ev.Payload.Offer)
		if err != nil {
			return fmt.Sprintf("%s: %s(malformed offer)%s", who, ansiRed, ansiReset)
		}
		return fmt.Sprintf("%s proposes: %s", who, describeOffer(game, offer))

	case event.TypeSendExpression:
		emoji, ok := exprEmoji[ev.Payload.Expression]
		if !ok {
			emoji = string(ev.Payload.Expression)
		}
		return fmt.Sprintf("%s %s", who, emoji)

	case event.TypeOfferInProgress:
		return fmt.Sprintf("%s%s is working on an offer...%s", ansiDim, label(ev.SenderID), ansiReset)

	case event.TypeFormalAccept:
		return fmt.Sprintf("%s %sformally accepts the current offer%s", who, ansiGreen, ansiReset)

	case event.TypeGameStart:
		return fmt.Sprintf("%s─── negotiation started: %s ───%s", ansiBold, ev.Payload.GameName, ansiReset)

	case event.TypeGameEnd:
		c := ansiRed
		if ev.Payload.Reason == "mutual_agreement" {
			c = ansiGreen
		}
		return fmt.Sprintf("%s─── negotiation over (%s) ───%s", c, ev.Payload.Reason, ansiReset)

	case event.TypeTime:
		return ""
	}
	return ""
}

// describeOffer renders an offer compactly from the human's point of
// view: "apples 1/1/2 (you/↔/agent)".
func describeOffer(game *domain.GameSpec, offer *domain.Offer) string {
	var parts []string
	for _, is := range game.Issues {
		a, ok := offer.Allocation(is.Name)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d/%d/%d", is.Name, a.Human, a.Middle, a.Agent))
	}
	if len(parts) == 0 {
		return "(nothing yet)"
	}
	return strings.Join(parts, ", ") + "  (you/undecided/agent)"
}

// FormatBoard renders the current offer as an aligned table. Display
// names may be wide (CJK); columns align on display width, not byte
// length.
func FormatBoard(game *domain.GameSpec, offer *domain.Offer) string {
	nameWidth := len("issue")
	for _, is := range game.Issues {
		if w := runewidth.StringWidth(game.DisplayName(is.Name, true)); w > nameWidth {
			nameWidth = w
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s  %5s %10s %6s%s\n",
		ansiBold, runewidth.FillRight("issue", nameWidth), "you", "undecided", "agent", ansiReset)
	for _, is := range game.Issues {
		name := runewidth.FillRight(game.DisplayName(is.Name, true), nameWidth)
		a, ok := offer.Allocation(is.Name)
		if !ok {
			fmt.Fprintf(&sb, "%s  %s%5s %10s %6s%s\n", name, ansiDim, "-", "-", "-", ansiReset)
			continue
		}
		fmt.Fprintf(&sb, "%s  %5d %10d %6d\n", name, a.Human, a.Middle, a.Agent)
	}
	return sb.String()
}

// FormatStatus renders a one-shot status block: state, clock, utilities
// and acceptance flags.
func FormatStatus(state string, elapsed float64, remaining *float64, humanPct, agentPct float64, humanAccepted, agentAccepted bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "state: %s\n", state)
	if remaining != nil {
		fmt.Fprintf(&sb, "clock: %.0fs elapsed, %.0fs remaining\n", elapsed, *remaining)
	} else {
		fmt.Fprintf(&sb, "clock: %.0fs elapsed, no deadline\n", elapsed)
	}
	fmt.Fprintf(&sb, "utility: you %.0f%%, agent %.0f%%\n", humanPct, agentPct)
	fmt.Fprintf(&sb, "accepted: you=%v agent=%v\n", humanAccepted, agentAccepted)
	return sb.String()
}

// FormatClock renders the TIME tick info used on the status line.
func FormatClock(elapsed float64, remaining *float64) string {
	if remaining == nil {
		return fmt.Sprintf("%s[%.0fs]%s", ansiDim, elapsed, ansiReset)
	}
	c := ansiDim
	if *remaining < 60 {
		c = ansiRed
	}
	return fmt.Sprintf("%s[%.0fs left]%s", c, *remaining, ansiReset)
}
