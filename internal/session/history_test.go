package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestAppendAssignsTurnsInOrder(t *testing.T) {
	h := New()

	for i := 0; i < 3; i++ {
		h.Append(Entry{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}

	if h.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", h.Len())
	}

	for i, entry := range h.Entries {
		if entry.Turn != i {
			t.Fatalf("entry %d has turn %d", i, entry.Turn)
		}
		if entry.Timestamp.IsZero() {
			t.Fatalf("entry %d has no timestamp", i)
		}
	}

	last := h.Last()
	if last == nil || last.Question != "q2" {
		t.Fatalf("unexpected last entry: %+v", last)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	h := New()
	stamp := time.Date(2026, 5, 12, 10, 30, 0, 0, time.UTC)
	h.Append(Entry{Question: "Tell me about yourself", Answer: "I am a software engineer...", Timestamp: stamp})
	h.Append(Entry{Question: "Why Go?", Answer: "Static binaries and a simple concurrency model.", Timestamp: stamp.Add(time.Minute)})
	h.AttachFollowups([]string{"Which Go projects have you shipped?"})

	if err := h.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.SessionID != h.SessionID {
		t.Fatalf("session id changed across round trip: %q vs %q", loaded.SessionID, h.SessionID)
	}

	if !reflect.DeepEqual(loaded.Entries, h.Entries) {
		t.Fatalf("entries changed across round trip:\n%+v\nvs\n%+v", loaded.Entries, h.Entries)
	}
}

func TestSaveOverwritesAndKeepsExactlyNTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	h := New()
	h.Append(Entry{Question: "old", Answer: "old"})
	if err := h.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	const n = 5
	h = New()
	for i := 0; i < n; i++ {
		h.Append(Entry{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}
	if err := h.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Len() != n {
		t.Fatalf("expected %d persisted turns, got %d", n, loaded.Len())
	}

	for i, entry := range loaded.Entries {
		if entry.Question != fmt.Sprintf("q%d", i) {
			t.Fatalf("turn %d out of order: %+v", i, entry)
		}
	}
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachFollowups(t *testing.T) {
	h := New()

	// Attaching to an empty history is a no-op.
	h.AttachFollowups([]string{"anything"})
	if h.Len() != 0 {
		t.Fatalf("expected empty history, got %d entries", h.Len())
	}

	h.Append(Entry{Question: "q", Answer: "a"})
	h.AttachFollowups([]string{"f1", "f2"})
	h.AttachFollowups([]string{"ignored"})

	got := h.Last().Followups
	if !reflect.DeepEqual(got, []string{"f1", "f2"}) {
		t.Fatalf("unexpected followups: %+v", got)
	}
}
