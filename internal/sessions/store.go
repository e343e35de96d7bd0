// Package sessions persists conversation transcripts as append-only
// JSONL files, one file per session id, and repairs transcripts whose
// tool messages violate the tool-calling protocol.
package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/waysongjiang/pyopencode/internal/workspace"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// Store is a session transcript backed by a JSONL file. Appends go to
// memory and to disk; the in-memory view is authoritative for the rest
// of the turn.
type Store struct {
	id   string
	path string

	mu   sync.Mutex
	msgs []models.Message
}

// NewSessionID returns a fresh 12-hex-character session id.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Open loads the session with the given id from the user data
// directory, creating a new id when id is empty. Lines that fail to
// parse (a torn final write after a crash, stray garbage) are skipped.
func Open(id string) (*Store, error) {
	dir, err := workspace.SessionsDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dir, id)
}

// OpenAt is Open with an explicit directory.
func OpenAt(dir, id string) (*Store, error) {
	if strings.TrimSpace(id) == "" {
		id = NewSessionID()
	}
	s := &Store{
		id:   id,
		path: filepath.Join(dir, id+".jsonl"),
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m models.Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		s.msgs = append(s.msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	return s, nil
}

// SessionID returns the session id.
func (s *Store) SessionID() string { return s.id }

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Len returns the number of messages currently loaded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Messages returns a snapshot of the transcript.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Last returns the most recent message, if any.
func (s *Store) Last() (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return models.Message{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}

// Append adds a message to memory and writes it to the session file.
// The write is flushed and fsynced best-effort so a crash mid-turn
// loses at most the torn final line.
func (s *Store) Append(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append message: %w", err)
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}

	s.msgs = append(s.msgs, m)
	return nil
}

// Replace swaps the in-memory transcript. The file is left untouched:
// repair happens on every load, so rewriting history on disk buys
// nothing and risks losing the original record.
func (s *Store) Replace(msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = make([]models.Message, len(msgs))
	copy(s.msgs, msgs)
}
