package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Load when no session file exists at the given path.
var ErrNotFound = errors.New("session file not found")

// Entry records a single interview turn. Entries are created once per turn
// and appended in chronological order.
type Entry struct {
	Turn      int       `json:"turn"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Followups []string  `json:"followups,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the append-only log of interview turns for one session.
type History struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Entries   []Entry   `json:"entries"`
}

// New creates an empty history for a fresh interview session.
func New() *History {
	return &History{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Append adds the entry to the end of the log, assigning the next turn number.
func (h *History) Append(e Entry) {
	e.Turn = len(h.Entries)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	h.Entries = append(h.Entries, e)
}

// AttachFollowups records suggested follow-up questions on the most recent
// entry. It is a no-op when the history is empty or the latest entry already
// carries follow-ups.
func (h *History) AttachFollowups(followups []string) {
	if len(h.Entries) == 0 || len(followups) == 0 {
		return
	}

	last := &h.Entries[len(h.Entries)-1]
	if len(last.Followups) > 0 {
		return
	}

	last.Followups = append([]string(nil), followups...)
}

func (h *History) Len() int {
	return len(h.Entries)
}

// Last returns the most recent entry, or nil when the history is empty.
func (h *History) Last() *Entry {
	if len(h.Entries) == 0 {
		return nil
	}
	return &h.Entries[len(h.Entries)-1]
}

// Save serializes the full history to path, overwriting any prior content.
func (h *History) Save(path string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session directory %q: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session file %q: %w", path, err)
	}

	return nil
}

// Load reconstructs a history from the file at path. A missing file is
// reported as ErrNotFound so callers can start a new session instead.
func Load(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read session file %q: %w", path, err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse session file %q: %w", path, err)
	}

	return &h, nil
}
