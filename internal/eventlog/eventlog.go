// Package eventlog persists negotiation sessions as JSONL and replays
// them. One file per session; every bus event becomes one line, framed
// by session_start/session_end records, with game config, metadata, and
// the final result interleaved as their own record types.
//
// All Logger methods are nil-safe (no-op on nil receiver) so callers
// running without persistence don't need nil checks at every site.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parley-sim/parley/internal/bus"
	"github.com/parley-sim/parley/internal/event"
)

// subscriberID under which the logger registers on the bus.
const subscriberID = "event_logger"

// formatVersion is written into session_start records.
const formatVersion = "1.0"

// RecordType labels one JSONL line.
type RecordType string

const (
	RecordSessionStart RecordType = "session_start"
	RecordSessionEnd   RecordType = "session_end"
	RecordEvent        RecordType = "event"
	RecordAction       RecordType = "action"
	RecordMetadata     RecordType = "metadata"
	RecordGameConfig   RecordType = "game_config"
	RecordResult       RecordType = "result"
)

// Record is one JSONL line. Fields are omitempty so each record type
// only serialises its own data.
type Record struct {
	Type      RecordType `json:"type"`
	SessionID string     `json:"session_id"`
	Timestamp string     `json:"timestamp"`

	// session_start
	Version string `json:"version,omitempty"`

	// event
	EventNumber int          `json:"event_number,omitempty"`
	Event       *event.Event `json:"event_data,omitempty"`

	// action
	SenderID   string         `json:"sender_id,omitempty"`
	ActionType string         `json:"action_type,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`

	// metadata
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`

	// game_config
	Config map[string]any `json:"config,omitempty"`

	// result (pointers: a zero utility must survive the round trip)
	Outcome      string           `json:"outcome,omitempty"`
	HumanUtility *float64         `json:"human_utility,omitempty"`
	AgentUtility *float64         `json:"agent_utility,omitempty"`
	FinalOffer   map[string][]int `json:"final_offer,omitempty"`

	// result / session_end
	TotalEvents int `json:"total_events,omitempty"`
}

// Logger writes one session's records to a JSONL file. Concurrent
// writes are safe; the bus dispatches from multiple goroutines.
type Logger struct {
	sessionID string
	path      string

	mu         sync.Mutex
	f          *os.File
	eventCount int
	bus        *bus.Bus
}

// New opens (appending) logs/session_<id>.jsonl under dir and writes
// the session_start record. An empty sessionID gets a timestamp ID.
func New(dir, sessionID string) (*Logger, error) {
	if sessionID == "" {
		sessionID = time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "session_"+sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	l := &Logger{sessionID: sessionID, path: path, f: f}
	l.write(Record{Type: RecordSessionStart, Version: formatVersion})
	return l, nil
}

// Path returns the log file path ("" on nil receiver).
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// SessionID returns the session ID ("" on nil receiver).
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// EventCount returns the number of event records written so far.
func (l *Logger) EventCount() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventCount
}

// Attach subscribes the logger to every event on the bus.
func (l *Logger) Attach(b *bus.Bus) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.bus = b
	l.mu.Unlock()
	b.Subscribe(subscriberID, func(ev event.Event) error {
		l.LogEvent(ev)
		return nil
	})
}

// LogEvent writes one event record.
func (l *Logger) LogEvent(ev event.Event) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.eventCount++
	n := l.eventCount
	l.mu.Unlock()
	e := ev
	l.write(Record{Type: RecordEvent, EventNumber: n, Event: &e})
}

// LogAction writes an agent action record, distinct from the events it
// produces.
func (l *Logger) LogAction(senderID, actionType string, data map[string]any) {
	if l == nil {
		return
	}
	l.write(Record{Type: RecordAction, SenderID: senderID, ActionType: actionType, ActionData: data})
}

// LogMetadata writes an arbitrary key/value record.
func (l *Logger) LogMetadata(key string, value any) {
	if l == nil {
		return
	}
	l.write(Record{Type: RecordMetadata, Key: key, Value: value})
}

// LogGameConfig records the game configuration for later replay.
func (l *Logger) LogGameConfig(config map[string]any) {
	if l == nil {
		return
	}
	l.write(Record{Type: RecordGameConfig, Config: config})
}

// LogResult records the negotiation outcome and both final utilities.
func (l *Logger) LogResult(outcome string, humanUtility, agentUtility float64, finalOffer map[string][]int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	n := l.eventCount
	l.mu.Unlock()
	h, a := humanUtility, agentUtility
	l.write(Record{
		Type:         RecordResult,
		Outcome:      outcome,
		HumanUtility: &h,
		AgentUtility: &a,
		FinalOffer:   finalOffer,
		TotalEvents:  n,
	})
}

// Close unsubscribes from the bus, writes session_end, and closes the
// file. Safe to call more than once.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	b := l.bus
	l.bus = nil
	n := l.eventCount
	l.mu.Unlock()
	if b != nil {
		b.Unsubscribe(subscriberID)
	}

	l.write(Record{Type: RecordSessionEnd, TotalEvents: n})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
}

// write appends one JSON line, adding session ID and timestamp.
func (l *Logger) write(r Record) {
	r.SessionID = l.sessionID
	r.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(r)
	if err != nil {
		slog.Error("[EVENTLOG] marshal record", "error", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	if _, err = fmt.Fprintf(l.f, "%s\n", data); err != nil {
		slog.Error("[EVENTLOG] write record", "error", err)
	}
}
