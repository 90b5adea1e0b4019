package analyzer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "cli-patterns.json")

	s := OpenStore(path)
	p := &Pattern{
		CLI:             "qwen",
		Version:         "0.0.14",
		Family:          FamilyAlibaba,
		Options:         []string{"-y", "--yolo"},
		InteractionMode: ModeNonInteractive,
		Timestamp:       time.Now().UTC().Truncate(time.Second),
		Success:         true,
	}
	if err := s.Put(p); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened := OpenStore(path)
	got, ok := reopened.Get("qwen")
	if !ok {
		t.Fatal("Get(qwen) missing after reopen")
	}
	if got.Version != "0.0.14" || got.Family != FamilyAlibaba {
		t.Errorf("reopened pattern = %+v", got)
	}
	if len(got.Options) != 2 {
		t.Errorf("Options = %v", got.Options)
	}
}

func TestStoreFailureCounter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli-patterns.json")
	s := OpenStore(path)

	for i := 0; i < 3; i++ {
		if err := s.RecordFailure("iflow", "no output", []string{"iflow", "--help"}); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	f, ok := s.LastFailure("iflow")
	if !ok {
		t.Fatal("LastFailure(iflow) missing")
	}
	if f.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", f.Attempts)
	}

	// A successful analysis clears the failure record.
	if err := s.Put(&Pattern{CLI: "iflow", Success: true}); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.LastFailure("iflow"); ok {
		t.Error("failure record should be cleared by Put")
	}
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli-patterns.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	s := OpenStore(path)
	if len(s.Patterns()) != 0 {
		t.Error("corrupt cache should start empty")
	}
	if err := s.Put(&Pattern{CLI: "claude", Success: true}); err != nil {
		t.Errorf("Put over corrupt cache error = %v", err)
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := OpenStore(filepath.Join(t.TempDir(), "cli-patterns.json"))
	if err := s.Put(&Pattern{CLI: "codex", Options: []string{"--full-auto"}, Success: true}); err != nil {
		t.Fatal(err)
	}

	first, _ := s.Get("codex")
	first.Options[0] = "mutated"

	second, _ := s.Get("codex")
	if second.Options[0] != "--full-auto" {
		t.Error("Get handed out the cached slice")
	}
}
