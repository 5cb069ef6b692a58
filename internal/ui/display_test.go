package ui

import (
	"strings"
	"testing"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// --- transcript lines ---

func TestFormatEvent_Message(t *testing.T) {
	game := domain.ClassicResourceGame()
	line := FormatEvent(game, event.NewMessage(event.SenderAgent, "hello there", event.SubtypeGreeting, 0))
	if !strings.Contains(line, "agent") || !strings.Contains(line, "hello there") {
		t.Errorf("line = %q", line)
	}
}

func TestFormatEvent_Offer(t *testing.T) {
	// offers render human-first: "apples 1/1/2" is you/undecided/agent
	game := domain.ClassicResourceGame()
	line := FormatEvent(game, event.NewOffer(event.SenderHuman, map[string][]int{
		"apples": {2, 1, 1}, // wire order agent/middle/human
	}, 0))
	if !strings.Contains(line, "apples 1/1/2") {
		t.Errorf("line = %q, want the human-first tuple", line)
	}
	if !strings.Contains(line, "(you/undecided/agent)") {
		t.Errorf("line = %q, missing the legend", line)
	}
}

func TestFormatEvent_MalformedOffer(t *testing.T) {
	game := domain.ClassicResourceGame()
	line := FormatEvent(game, event.NewOffer(event.SenderHuman, map[string][]int{"apples": {1}}, 0))
	if !strings.Contains(line, "malformed") {
		t.Errorf("line = %q", line)
	}
}

func TestFormatEvent_Lifecycle(t *testing.T) {
	game := domain.ClassicResourceGame()

	start := FormatEvent(game, event.NewGameStart("classic_resource", 0))
	if !strings.Contains(start, "negotiation started") || !strings.Contains(start, "classic_resource") {
		t.Errorf("start line = %q", start)
	}

	end := FormatEvent(game, event.NewGameEnd("timeout", nil))
	if !strings.Contains(end, "negotiation over") || !strings.Contains(end, "timeout") {
		t.Errorf("end line = %q", end)
	}

	accept := FormatEvent(game, event.NewFormalAccept(event.SenderHuman, 0))
	if !strings.Contains(accept, "formally accepts") {
		t.Errorf("accept line = %q", accept)
	}
}

func TestFormatEvent_TimeTickIsSilent(t *testing.T) {
	game := domain.ClassicResourceGame()
	if line := FormatEvent(game, event.NewTimeTick(10, nil)); line != "" {
		t.Errorf("tick rendered %q, want nothing", line)
	}
}

func TestFormatEvent_Expression(t *testing.T) {
	game := domain.ClassicResourceGame()
	line := FormatEvent(game, event.NewExpression(event.SenderAgent, event.ExprHappy, 1500, 0))
	if !strings.Contains(line, "🙂") {
		t.Errorf("line = %q", line)
	}
}

// --- board ---

func TestFormatBoard_AllIssues(t *testing.T) {
	game := domain.ClassicResourceGame()
	offer, _ := domain.OfferFromMap(map[string][]int{
		"apples": {4, 0, 0}, "oranges": {1, 1, 1},
	})

	board := FormatBoard(game, offer)
	lines := strings.Split(strings.TrimRight(board, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("board has %d lines, want header + 3 issues:\n%s", len(lines), board)
	}
	if !strings.Contains(lines[0], "issue") || !strings.Contains(lines[0], "undecided") {
		t.Errorf("header = %q", lines[0])
	}
	// unset issues show dashes
	if !strings.Contains(lines[3], "-") {
		t.Errorf("bananas row = %q, want placeholders", lines[3])
	}
	// apples row is human-first: 0 yours, 0 undecided, 4 agent
	if !strings.Contains(lines[1], "0") || !strings.Contains(lines[1], "4") {
		t.Errorf("apples row = %q", lines[1])
	}
}

// --- status ---

func TestFormatStatus(t *testing.T) {
	rem := 120.0
	s := FormatStatus("in_progress", 180, &rem, 84, 74, true, false)
	for _, want := range []string{"in_progress", "180s elapsed", "120s remaining", "you 84%", "agent 74%", "you=true", "agent=false"} {
		if !strings.Contains(s, want) {
			t.Errorf("status missing %q:\n%s", want, s)
		}
	}

	noDeadline := FormatStatus("in_progress", 30, nil, 0, 0, false, false)
	if !strings.Contains(noDeadline, "no deadline") {
		t.Errorf("status = %q", noDeadline)
	}
}

func TestFormatClock(t *testing.T) {
	rem := 30.0
	if got := FormatClock(0, &rem); !strings.Contains(got, ansiRed) {
		t.Errorf("clock %q should turn red under a minute", got)
	}
	calm := 300.0
	if got := FormatClock(0, &calm); strings.Contains(got, ansiRed) {
		t.Errorf("clock %q should not be red with time to spare", got)
	}
	if got := FormatClock(42, nil); !strings.Contains(got, "42s") {
		t.Errorf("clock = %q", got)
	}
}
