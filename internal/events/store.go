// Package events records structured observability events (LLM calls,
// tool executions, resume decisions) to an append-only JSONL file
// alongside each session. The log is best-effort: a failed write must
// never abort a turn.
package events

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/waysongjiang/pyopencode/internal/workspace"
)

// Event is one recorded occurrence. TS is unix seconds with fractional
// precision.
type Event struct {
	TS   float64        `json:"ts"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Store appends events for one session.
type Store struct {
	sessionID string
	path      string
	logger    *slog.Logger
}

// Open returns the event store for a session id, placing the file under
// the user data directory.
func Open(sessionID string) (*Store, error) {
	dir, err := workspace.EventsDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dir, sessionID), nil
}

// OpenAt is Open with an explicit directory.
func OpenAt(dir, sessionID string) *Store {
	return &Store{
		sessionID: sessionID,
		path:      filepath.Join(dir, sessionID+".jsonl"),
		logger:    slog.Default().With("component", "events", "session", sessionID),
	}
}

// SessionID returns the session this store records for.
func (s *Store) SessionID() string { return s.sessionID }

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Append records one event. Failures are logged and swallowed.
func (s *Store) Append(eventType string, data map[string]any) {
	if s == nil {
		return
	}
	ev := Event{
		TS:   float64(time.Now().UnixNano()) / 1e9,
		Type: eventType,
		Data: data,
	}
	line, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("encode event failed", "type", eventType, "error", err)
		return
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.logger.Warn("open event log failed", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("append event failed", "type", eventType, "error", err)
	}
}

// Iter reads every parseable event in file order. Corrupt lines are
// skipped; a missing file yields no events.
func (s *Store) Iter() ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}
