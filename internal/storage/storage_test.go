package storage

import (
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "datastore.json"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCommandHistory(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SetCommand("g1", "c1", "general", "Guild One", "u1", "alice", "play"); err != nil {
		t.Fatalf("SetCommand error: %v", err)
	}

	history, err := s.FetchCommandHistory("g1")
	if err != nil {
		t.Fatalf("FetchCommandHistory error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Command != "play" || history[0].Username != "alice" {
		t.Errorf("unexpected record: %+v", history[0])
	}
}

func TestTrackHistoryBounded(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < trackHistoryLimit+5; i++ {
		err := s.AppendTrackToHistory("g1", TrackHistoryRecord{URL: "u", Title: "t"})
		if err != nil {
			t.Fatalf("AppendTrackToHistory error: %v", err)
		}
	}

	history, err := s.FetchTrackHistory("g1")
	if err != nil {
		t.Fatalf("FetchTrackHistory error: %v", err)
	}
	if len(history) != trackHistoryLimit {
		t.Errorf("track history length = %d, want %d", len(history), trackHistoryLimit)
	}
}

func TestCommandHashes(t *testing.T) {
	s := newTestStorage(t)

	hashes, err := s.GetCommandHashes("g1")
	if err != nil {
		t.Fatalf("GetCommandHashes error: %v", err)
	}
	if len(hashes) != 0 {
		t.Errorf("fresh guild hashes = %v, want empty", hashes)
	}

	if err := s.SetCommandHashes("g1", map[string]string{"play": "abc"}); err != nil {
		t.Fatalf("SetCommandHashes error: %v", err)
	}
	hashes, err = s.GetCommandHashes("g1")
	if err != nil {
		t.Fatalf("GetCommandHashes error: %v", err)
	}
	if hashes["play"] != "abc" {
		t.Errorf(`hashes["play"] = %q, want "abc"`, hashes["play"])
	}
}
