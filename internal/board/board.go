package board

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"

	"github.com/stigmergy/stig/internal/logging"
)

const (
	// FileName is the board document inside the status directory.
	FileName = "PROJECT_STATUS.md"
	// LockName sits next to it.
	LockName = "STATUS.lock"
)

// DefaultDir returns the status directory for a project root.
func DefaultDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".stigmergy", "status")
}

// Board is a handle on one project's status file. It keeps no
// authoritative in-memory state: every write re-reads the file under the
// lock before merging.
type Board struct {
	path     string
	lockPath string
	now      func() time.Time
	newID    func() string
}

// Open returns a handle on the board in dir. Nothing is touched until
// Initialize or the first write.
func Open(dir string) *Board {
	return &Board{
		path:     filepath.Join(dir, FileName),
		lockPath: filepath.Join(dir, LockName),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return "t-" + uuid.NewString()[:8] },
	}
}

// Path returns the board document location.
func (b *Board) Path() string { return b.path }

// Initialize seeds the board file if absent. Idempotent: an existing
// board is left untouched, whatever its content.
func (b *Board) Initialize(info ProjectInfo) error {
	if _, err := os.Stat(b.path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("status dir: %w", err)
	}

	release, err := acquireLock(b.lockPath)
	if err != nil {
		return err
	}
	defer release()

	// Another process may have initialised while we waited on the lock.
	if _, err := os.Stat(b.path); err == nil {
		return nil
	}

	if info.CreatedAt.IsZero() {
		info.CreatedAt = b.now()
	}
	if info.SessionID == "" {
		info.SessionID = uuid.NewString()[:8]
	}
	if info.Phase == "" {
		info.Phase = "active"
	}
	state := &State{Project: info, LastActivity: info.CreatedAt}
	logging.Debugf("[board] initialising %s (session %s)", b.path, info.SessionID)
	return b.writeLocked(state)
}

// Read parses the current board. Lock-free: a concurrent writer's
// rename-on-close means we see either the old or the new document,
// never a torn one.
func (b *Board) Read() (*State, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("status board not initialised at %s: %w", b.path, err)
	}
	return Parse(raw)
}

// TaskUpdate mutates one queued task by id.
type TaskUpdate struct {
	ID          string
	Status      TaskStatus
	CLI         string
	Result      string
	CompletedAt *time.Time
}

// Patch is the update language: scalar sets plus append-only adds.
type Patch struct {
	CurrentCLI   *string
	LastActivity *time.Time
	AddTasks     []Task
	UpdateTasks  []TaskUpdate
	AddFindings  []Finding
	AddDecisions []Decision
	AddHistory   []HistoryEntry
}

// Update applies patch read-merge-write under the exclusive lock.
func (b *Board) Update(patch Patch) error {
	release, err := acquireLock(b.lockPath)
	if err != nil {
		return err
	}
	defer release()

	state, err := b.Read()
	if err != nil {
		return err
	}
	b.merge(state, patch)
	return b.writeLocked(state)
}

func (b *Board) merge(s *State, patch Patch) {
	if patch.CurrentCLI != nil {
		s.CurrentCLI = *patch.CurrentCLI
	}
	if patch.LastActivity != nil {
		s.LastActivity = patch.LastActivity.UTC()
	} else {
		s.LastActivity = b.now()
	}
	s.Tasks = append(s.Tasks, patch.AddTasks...)
	for _, u := range patch.UpdateTasks {
		t := s.FindTask(u.ID)
		if t == nil {
			continue
		}
		if u.Status != "" {
			t.Status = u.Status
		}
		if u.CLI != "" {
			t.CLI = u.CLI
		}
		if u.Result != "" {
			t.Result = u.Result
		}
		if u.CompletedAt != nil {
			at := u.CompletedAt.UTC()
			t.CompletedAt = &at
		}
	}
	s.Findings = append(s.Findings, patch.AddFindings...)
	s.Decisions = append(s.Decisions, patch.AddDecisions...)
	s.History = append(s.History, patch.AddHistory...)
}

// writeLocked serialises and renames into place. Caller holds the lock.
func (b *Board) writeLocked(s *State) error {
	raw := Serialize(s)
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".status-*")
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
	return os.Rename(tmp.Name(), b.path)
}

// TaskOutcome is the slice of an execution outcome the board records.
type TaskOutcome struct {
	Success bool
	Result  string
}

// BeginTask queues a task as ongoing under cli and returns its id.
func (b *Board) BeginTask(cli, task string) (string, error) {
	id := b.newID()
	now := b.now()
	err := b.Update(Patch{
		CurrentCLI: &cli,
		AddTasks: []Task{{
			ID:        id,
			Task:      task,
			Status:    StatusOngoing,
			Priority:  "normal",
			CLI:       cli,
			CreatedAt: now,
		}},
	})
	return id, err
}

// RecordTask completes the queued task (or queues-and-completes it when
// taskID is empty), sets the current CLI, and appends to history.
func (b *Board) RecordTask(cli, taskID, task string, outcome TaskOutcome) error {
	now := b.now()
	result := outcome.Result
	if result == "" {
		if outcome.Success {
			result = "ok"
		} else {
			result = "failed"
		}
	}

	patch := Patch{
		CurrentCLI: &cli,
		AddHistory: []HistoryEntry{{
			Timestamp: now,
			CLI:       cli,
			Type:      HistoryTask,
			Content:   task,
			Result:    result,
		}},
	}
	if taskID == "" {
		taskID = b.newID()
		patch.AddTasks = []Task{{
			ID:        taskID,
			Task:      task,
			Status:    StatusCompleted,
			Priority:  "normal",
			CLI:       cli,
			CreatedAt: now,
		}}
	}
	patch.UpdateTasks = []TaskUpdate{{
		ID:          taskID,
		Status:      StatusCompleted,
		CLI:         cli,
		Result:      result,
		CompletedAt: &now,
	}}
	return b.Update(patch)
}

// RecordFinding appends a finding and its history entry.
func (b *Board) RecordFinding(cli, category, content string) error {
	now := b.now()
	return b.Update(Patch{
		AddFindings: []Finding{{Timestamp: now, CLI: cli, Category: category, Content: content}},
		AddHistory: []HistoryEntry{{
			Timestamp: now,
			CLI:       cli,
			Type:      HistoryFinding,
			Content:   content,
		}},
	})
}

// RecordDecision appends a decision and its history entry.
func (b *Board) RecordDecision(cli, decision, rationale string) error {
	now := b.now()
	return b.Update(Patch{
		AddDecisions: []Decision{{Timestamp: now, CLI: cli, Decision: decision, Rationale: rationale}},
		AddHistory: []HistoryEntry{{
			Timestamp: now,
			CLI:       cli,
			Type:      HistoryDecision,
			Content:   decision,
		}},
	})
}

// SwitchCLI hands the session over to another CLI.
func (b *Board) SwitchCLI(cli, context string) error {
	return b.Update(Patch{
		CurrentCLI: &cli,
		AddHistory: []HistoryEntry{{
			Timestamp: b.now(),
			CLI:       cli,
			Type:      HistoryTask,
			Content:   "took over the session",
			Result:    context,
		}},
	})
}

// SummaryOptions shapes a rendered context summary.
type SummaryOptions struct {
	MaxHistory       int // default 10
	IncludeFindings  bool
	IncludeDecisions bool
}

const (
	summaryFindingsCap  = 20
	summaryDecisionsCap = 5
)

// ContextSummary renders board state as prose fit for prepending to a
// CLI prompt. Rendering truncates; the persisted state never does.
func (b *Board) ContextSummary(opts SummaryOptions) (string, error) {
	s, err := b.Read()
	if err != nil {
		return "", err
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}

	var out strings.Builder
	out.WriteString("## Project Context\n")
	fmt.Fprintf(&out, "Project: %s (phase: %s)\n", s.Project.Name, s.Project.Phase)
	cli := s.CurrentCLI
	if cli == "" {
		cli = "none"
	}
	fmt.Fprintf(&out, "Current CLI: %s; last activity %s\n", cli, formatTime(s.LastActivity))

	if pending := s.TasksByStatus(StatusPending); len(pending) > 0 {
		out.WriteString("\nPending tasks:\n")
		for _, t := range pending {
			fmt.Fprintf(&out, "- %s\n", t.Task)
		}
	}
	if ongoing := s.TasksByStatus(StatusOngoing); len(ongoing) > 0 {
		out.WriteString("\nOngoing tasks:\n")
		for _, t := range ongoing {
			fmt.Fprintf(&out, "- %s (%s)\n", t.Task, t.CLI)
		}
	}

	if opts.IncludeFindings && len(s.Findings) > 0 {
		out.WriteString("\nRecent findings:\n")
		for _, f := range tail(s.Findings, summaryFindingsCap) {
			fmt.Fprintf(&out, "- [%s] %s: %s\n", f.CLI, f.Category, f.Content)
		}
	}
	if opts.IncludeDecisions && len(s.Decisions) > 0 {
		out.WriteString("\nDecisions so far:\n")
		for _, d := range tail(s.Decisions, summaryDecisionsCap) {
			fmt.Fprintf(&out, "- %s", d.Decision)
			if d.Rationale != "" {
				fmt.Fprintf(&out, " (%s)", d.Rationale)
			}
			out.WriteString("\n")
		}
	}

	if len(s.History) > 0 {
		out.WriteString("\nRecent activity:\n")
		for _, h := range tail(s.History, opts.MaxHistory) {
			fmt.Fprintf(&out, "- [%s] %s %s", formatTime(h.Timestamp), h.CLI, h.Type)
			if h.Content != "" {
				fmt.Fprintf(&out, ": %s", h.Content)
			}
			out.WriteString("\n")
		}
	}
	return out.String(), nil
}

// Report renders a human-readable status dump for the terminal.
func (b *Board) Report() (string, error) {
	s, err := b.Read()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Project: %s  (phase: %s, session: %s)\n", s.Project.Name, s.Project.Phase, s.Project.SessionID)
	cli := s.CurrentCLI
	if cli == "" {
		cli = "none"
	}
	fmt.Fprintf(&out, "Current CLI: %s\nLast activity: %s\n\n", cli, formatTime(s.LastActivity))

	out.WriteString("Task queue:\n")
	if len(s.Tasks) == 0 {
		out.WriteString("  (empty)\n")
	}
	for _, t := range s.Tasks {
		text := runewidth.Truncate(t.Task, 56, "…")
		fmt.Fprintf(&out, "  %s %s %s %s\n",
			runewidth.FillRight(t.ID, 12),
			runewidth.FillRight(string(t.Status), 10),
			runewidth.FillRight(text, 58),
			t.CLI)
	}

	fmt.Fprintf(&out, "\nFindings: %d   Decisions: %d   History entries: %d\n",
		len(s.Findings), len(s.Decisions), len(s.History))
	if n := len(s.History); n > 0 {
		h := s.History[n-1]
		fmt.Fprintf(&out, "Last entry: [%s] %s %s: %s\n", formatTime(h.Timestamp), h.CLI, h.Type, h.Content)
	}
	return out.String(), nil
}

func tail[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}
