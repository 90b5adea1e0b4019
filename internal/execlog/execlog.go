// Package execlog appends one JSON line per CLI invocation to the
// project's execution log. Best effort: a failing log never fails the
// run it describes.
package execlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stigmergy/stig/internal/logging"
)

// FileName inside the status directory.
const FileName = "execution.log"

// Entry is one logged invocation.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	CLI        string    `json:"cli"`
	Task       string    `json:"task"`
	Argv       []string  `json:"argv"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exitCode"`
	Error      string    `json:"error,omitempty"`
	ElapsedMS  int64     `json:"elapsedMs"`
	FellBack   bool      `json:"fellBack,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	Interacted bool      `json:"interactionDetected,omitempty"`
}

// Log appends to the execution log in dir.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open returns a logger writing to dir/execution.log.
func Open(dir string) *Log {
	return &Log{path: filepath.Join(dir, FileName)}
}

// Append writes one entry. Errors are reported in debug logs only.
func (l *Log) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		logging.Debugf("[execlog] marshal: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		logging.Debugf("[execlog] dir: %v", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logging.Debugf("[execlog] open: %v", err)
		return
	}
	defer f.Close()
	f.Write(append(raw, '\n'))
}
