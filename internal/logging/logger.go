// Package logging provides leveled logging and run event tracing for bnsim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLog for structured JSONL run events (<output>/events.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for per-avalanche logging.
const LevelTrace = slog.LevelDebug - 4

// EventsFile is the name of the JSONL event log inside an output directory.
const EventsFile = "events.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Event is one line of the run event log.
type Event struct {
	Time   time.Time      `json:"time"`
	RunID  string         `json:"run_id"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields,omitempty"`
}

// EventLog appends run events to a JSONL file. It is safe for concurrent
// use. A nil EventLog is safe to use; all methods are no-ops on nil receiver.
type EventLog struct {
	mu    sync.Mutex
	file  *os.File
	runID string
	trace bool
}

// NewEventLog opens dir/events.jsonl for append on behalf of run runID.
// At "info" level (the default) it returns nil and no file is created.
// At "trace" level Tracing reports true so callers may log fine-grained
// events. Returns nil if the file cannot be opened.
func NewEventLog(dir, runID, level string) *EventLog {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}

	return &EventLog{file: f, runID: runID, trace: lvl <= LevelTrace}
}

// Tracing reports whether fine-grained events should be logged.
func (el *EventLog) Tracing() bool {
	return el != nil && el.trace
}

// Log writes one event. The caller's map is not retained.
// Safe to call on nil receiver.
func (el *EventLog) Log(kind string, fields map[string]any) {
	if el == nil || el.file == nil {
		return
	}

	ev := Event{
		Time:  time.Now().UTC(),
		RunID: el.runID,
		Kind:  kind,
	}
	if len(fields) > 0 {
		ev.Fields = make(map[string]any, len(fields))
		for k, v := range fields {
			ev.Fields[k] = v
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	_, _ = el.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (el *EventLog) Close() {
	if el == nil || el.file == nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	el.file.Close()
	el.file = nil
}
