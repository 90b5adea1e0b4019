// Package board maintains the shared Markdown status file that
// coordinates CLIs working on the same project. The Markdown document is
// the source of truth: writers take an exclusive lock file and rewrite
// it atomically, readers parse it lock-free.
package board

import "time"

// TaskStatus is the queue position of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusOngoing   TaskStatus = "ongoing"
	StatusCompleted TaskStatus = "completed"
)

// HistoryType tags a collaboration-history entry.
type HistoryType string

const (
	HistoryTask     HistoryType = "task"
	HistoryFinding  HistoryType = "finding"
	HistoryDecision HistoryType = "decision"
)

// ProjectInfo identifies the project the board belongs to.
type ProjectInfo struct {
	Name      string
	Root      string
	CreatedAt time.Time
	SessionID string
	Phase     string
}

// Task is one queue entry.
type Task struct {
	ID          string
	Task        string
	Status      TaskStatus
	Priority    string
	CLI         string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Result      string
}

// Finding is an append-only observation made by a CLI.
type Finding struct {
	Timestamp time.Time
	CLI       string
	Category  string
	Content   string
	Metadata  map[string]string
}

// Decision is an append-only recorded decision.
type Decision struct {
	Timestamp time.Time
	CLI       string
	Decision  string
	Rationale string
}

// HistoryEntry is one line of the collaboration history.
type HistoryEntry struct {
	Timestamp time.Time
	CLI       string
	Type      HistoryType
	Content   string
	Result    string
}

// State is the parsed form of the whole board.
type State struct {
	Project      ProjectInfo
	CurrentCLI   string
	LastActivity time.Time
	Tasks        []Task
	Findings     []Finding
	Decisions    []Decision
	History      []HistoryEntry
}

// TasksByStatus filters the queue in order.
func (s *State) TasksByStatus(status TaskStatus) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// FindTask returns a pointer into the queue, or nil.
func (s *State) FindTask(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}
