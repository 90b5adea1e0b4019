package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storeFormatVersion identifies the cache file layout.
const storeFormatVersion = "1"

// cacheFile is the on-disk shape of the pattern cache.
type cacheFile struct {
	Version        string              `json:"version"`
	LastUpdated    time.Time           `json:"lastUpdated"`
	CliPatterns    map[string]*Pattern `json:"cliPatterns"`
	FailedAttempts map[string]*Failure `json:"failedAttempts"`
}

// Store is the persistent pattern cache, one JSON document for all CLIs.
// Safe for concurrent use; every mutation rewrites the file atomically.
type Store struct {
	mu   sync.Mutex
	path string
	data cacheFile
}

// OpenStore loads the cache at path, starting empty when absent or
// unreadable. A corrupt cache is discarded, not fatal: patterns are
// derived data and will be recomputed.
func OpenStore(path string) *Store {
	s := &Store{path: path}
	s.data = cacheFile{
		Version:        storeFormatVersion,
		CliPatterns:    make(map[string]*Pattern),
		FailedAttempts: make(map[string]*Failure),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var f cacheFile
	if err := json.Unmarshal(raw, &f); err != nil || f.Version != storeFormatVersion {
		return s
	}
	if f.CliPatterns == nil {
		f.CliPatterns = make(map[string]*Pattern)
	}
	if f.FailedAttempts == nil {
		f.FailedAttempts = make(map[string]*Failure)
	}
	s.data = f
	return s
}

// Get returns a copy of the cached pattern for cli, if any.
func (s *Store) Get(cli string) (*Pattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.CliPatterns[cli]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Put stores a copy of the pattern and persists the cache.
func (s *Store) Put(p *Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.CliPatterns[p.CLI] = p.Clone()
	delete(s.data.FailedAttempts, p.CLI)
	return s.flushLocked()
}

// RecordFailure bumps the failed-attempt counter for cli and persists.
func (s *Store) RecordFailure(cli, errMsg string, argv []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.data.FailedAttempts[cli]
	attempts := 1
	if prev != nil {
		attempts = prev.Attempts + 1
	}
	s.data.FailedAttempts[cli] = &Failure{
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
		Attempts:  attempts,
		Argv:      append([]string(nil), argv...),
	}
	return s.flushLocked()
}

// LastFailure returns the recorded failure for cli, if any.
func (s *Store) LastFailure(cli string) (*Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.data.FailedAttempts[cli]
	if !ok {
		return nil, false
	}
	out := *f
	return &out, true
}

// Patterns returns copies of all cached patterns, keyed by CLI name.
func (s *Store) Patterns() map[string]*Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Pattern, len(s.data.CliPatterns))
	for name, p := range s.data.CliPatterns {
		out[name] = p.Clone()
	}
	return out
}

// flushLocked writes the cache via temp-file rename so readers never
// observe a torn document. Caller holds s.mu.
func (s *Store) flushLocked() error {
	s.data.LastUpdated = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("pattern cache dir: %w", err)
	}
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cli-patterns-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
