package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parley-sim/parley/internal/event"
)

// Result is the decoded result record of a replayed session.
type Result struct {
	Outcome      string
	HumanUtility float64
	AgentUtility float64
	FinalOffer   map[string][]int
	TotalEvents  int
}

// Summary aggregates per-party counts for a replayed session.
type Summary struct {
	SessionID     string
	TotalEvents   int
	HumanOffers   int
	AgentOffers   int
	HumanMessages int
	AgentMessages int
	Result        *Result
}

// Replay is a loaded session log: events in order plus the session's
// metadata, game config, and result.
type Replay struct {
	path       string
	sessionID  string
	startTime  string
	endTime    string
	events     []event.Event
	metadata   map[string]any
	gameConfig map[string]any
	result     *Result
}

// Load parses a JSONL session log. Blank lines are skipped; a malformed
// line is an error, not a silent gap in the replay.
func Load(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	r := &Replay{path: path, metadata: make(map[string]any)}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}

		switch rec.Type {
		case RecordSessionStart:
			r.sessionID = rec.SessionID
			r.startTime = rec.Timestamp
		case RecordSessionEnd:
			r.endTime = rec.Timestamp
		case RecordEvent:
			if rec.Event != nil {
				r.events = append(r.events, *rec.Event)
			}
		case RecordGameConfig:
			r.gameConfig = rec.Config
		case RecordMetadata:
			r.metadata[rec.Key] = rec.Value
		case RecordResult:
			res := &Result{
				Outcome:     rec.Outcome,
				FinalOffer:  rec.FinalOffer,
				TotalEvents: rec.TotalEvents,
			}
			if rec.HumanUtility != nil {
				res.HumanUtility = *rec.HumanUtility
			}
			if rec.AgentUtility != nil {
				res.AgentUtility = *rec.AgentUtility
			}
			r.result = res
		case RecordAction:
			// actions are diagnostics, not part of the event stream
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return r, nil
}

// SessionID returns the logged session ID.
func (r *Replay) SessionID() string { return r.sessionID }

// EventCount returns the number of events in the log.
func (r *Replay) EventCount() int { return len(r.events) }

// Events returns the event stream in log order (copy).
func (r *Replay) Events() []event.Event {
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventAt returns the event at index; ok is false out of range.
func (r *Replay) EventAt(i int) (event.Event, bool) {
	if i < 0 || i >= len(r.events) {
		return event.Event{}, false
	}
	return r.events[i], true
}

// GameConfig returns the logged game configuration (nil if absent).
func (r *Replay) GameConfig() map[string]any { return r.gameConfig }

// Result returns the logged result (nil if the session never finished).
func (r *Replay) Result() *Result { return r.result }

// Metadata returns the session's metadata records.
func (r *Replay) Metadata() map[string]any { return r.metadata }

// Pacing controls replay timing.
type Pacing struct {
	// DelayMS is a fixed delay between events (ignored under RealTime).
	DelayMS int
	// RealTime sleeps the original gaps between event timestamps.
	RealTime bool
}

// Run invokes onEvent for every event in order, paced per p. onEvent
// returning false stops the replay early.
func (r *Replay) Run(onEvent func(ev event.Event, index int) bool, p Pacing) {
	var lastTS float64
	for i, ev := range r.events {
		if p.RealTime && i > 0 {
			if gap := ev.Timestamp - lastTS; gap > 0 {
				time.Sleep(time.Duration(gap * float64(time.Second)))
			}
		} else if !p.RealTime && p.DelayMS > 0 && i > 0 {
			time.Sleep(time.Duration(p.DelayMS) * time.Millisecond)
		}
		lastTS = ev.Timestamp
		if !onEvent(ev, i) {
			return
		}
	}
}

// OfferEntry is one offer from the log with its sender.
type OfferEntry struct {
	SenderID string
	Offer    map[string][]int
}

// Offers returns every offer in the log in order.
func (r *Replay) Offers() []OfferEntry {
	var out []OfferEntry
	for _, ev := range r.events {
		if m := ev.Offer(); m != nil {
			out = append(out, OfferEntry{SenderID: ev.SenderID, Offer: m})
		}
	}
	return out
}

// MessageEntry is one chat message from the log with its sender.
type MessageEntry struct {
	SenderID string
	Text     string
}

// Messages returns every chat message in the log in order.
func (r *Replay) Messages() []MessageEntry {
	var out []MessageEntry
	for _, ev := range r.events {
		if ev.Type == event.TypeSendMessage && ev.Payload.Text != "" {
			out = append(out, MessageEntry{SenderID: ev.SenderID, Text: ev.Payload.Text})
		}
	}
	return out
}

// Summarize counts offers and messages per party.
func (r *Replay) Summarize() Summary {
	s := Summary{
		SessionID:   r.sessionID,
		TotalEvents: len(r.events),
		Result:      r.result,
	}
	for _, ev := range r.events {
		switch ev.Type {
		case event.TypeSendOffer:
			if ev.SenderID == event.SenderHuman {
				s.HumanOffers++
			} else if ev.SenderID == event.SenderAgent {
				s.AgentOffers++
			}
		case event.TypeSendMessage:
			if ev.SenderID == event.SenderHuman {
				s.HumanMessages++
			} else if ev.SenderID == event.SenderAgent {
				s.AgentMessages++
			}
		}
	}
	return s
}
