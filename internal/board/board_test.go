package board

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	b := Open(t.TempDir())
	require.NoError(t, b.Initialize(ProjectInfo{Name: "demo", Root: "/work/demo"}))
	return b
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestSerializeParseRoundTrip(t *testing.T) {
	completed := ts("2026-08-24T10:30:00Z")
	v := &State{
		Project: ProjectInfo{
			Name:      "demo",
			Root:      "/work/demo",
			CreatedAt: ts("2026-08-24T10:00:00Z"),
			SessionID: "a1b2c3d4",
			Phase:     "active",
		},
		CurrentCLI:   "qwen",
		LastActivity: ts("2026-08-24T10:31:00Z"),
		Tasks: []Task{
			{ID: "t-00000001", Task: "fix the build", Status: StatusPending, Priority: "high", CreatedAt: ts("2026-08-24T10:01:00Z")},
			{ID: "t-00000002", Task: "refactor parser", Status: StatusOngoing, Priority: "normal", CLI: "claude", CreatedAt: ts("2026-08-24T10:02:00Z")},
			{ID: "t-00000003", Task: "task A", Status: StatusCompleted, Priority: "normal", CLI: "qwen", CreatedAt: ts("2026-08-24T10:03:00Z"), CompletedAt: &completed, Result: "55"},
		},
		Findings: []Finding{
			{Timestamp: ts("2026-08-24T10:10:00Z"), CLI: "qwen", Category: "perf", Content: "N+1 query in module Z", Metadata: map[string]string{"file": "db.go"}},
			{Timestamp: ts("2026-08-24T10:11:00Z"), CLI: "claude", Category: "bug", Content: "off-by-one in pager"},
		},
		Decisions: []Decision{
			{Timestamp: ts("2026-08-24T10:12:00Z"), CLI: "claude", Decision: "keep markdown format", Rationale: "human readable"},
		},
		History: []HistoryEntry{
			{Timestamp: ts("2026-08-24T10:03:00Z"), CLI: "qwen", Type: HistoryTask, Content: "task A", Result: "55"},
			{Timestamp: ts("2026-08-24T10:10:00Z"), CLI: "qwen", Type: HistoryFinding, Content: "N+1 query in module Z"},
		},
	}

	got, err := Parse(Serialize(v))
	require.NoError(t, err)

	assert.Equal(t, v.Project, got.Project)
	assert.Equal(t, v.CurrentCLI, got.CurrentCLI)
	assert.Equal(t, v.LastActivity, got.LastActivity)
	// Queue round-trips grouped by status; compare per group.
	for _, status := range []TaskStatus{StatusPending, StatusOngoing, StatusCompleted} {
		assert.Equal(t, v.TasksByStatus(status), got.TasksByStatus(status), string(status))
	}
	assert.Equal(t, v.Findings, got.Findings)
	assert.Equal(t, v.Decisions, got.Decisions)
	assert.Equal(t, v.History, got.History)
}

func TestRoundTripPreservesVerbatimContent(t *testing.T) {
	created := ts("2026-08-24T10:00:00Z")
	v := &State{
		Project: ProjectInfo{
			Name:      "demo",
			Root:      "/work/demo",
			CreatedAt: created,
			SessionID: "a1b2c3d4",
			Phase:     "active",
		},
		CurrentCLI:   "qwen",
		LastActivity: created,
		Tasks: []Task{
			{ID: "t-00000001", Task: `rename handle() (see utils.go)`, Status: StatusCompleted, Priority: "normal", CLI: "qwen", CreatedAt: created, CompletedAt: &created, Result: `done => merged ("v2")`},
		},
		Findings: []Finding{
			{Timestamp: created, CLI: "qwen", Category: "perf (hot)", Content: "slow path in foo() (hot loop)"},
		},
		Decisions: []Decision{
			{Timestamp: created, CLI: "claude", Decision: "split bar(); rationale: keep it testable", Rationale: "discussed; rationale: none better"},
		},
		History: []HistoryEntry{
			{Timestamp: created, CLI: "qwen", Type: HistoryTask, Content: "map a => b\nthen c", Result: "ok (3 files)"},
		},
	}

	got, err := Parse(Serialize(v))
	require.NoError(t, err)

	require.Len(t, got.Findings, 1)
	assert.Equal(t, "slow path in foo() (hot loop)", got.Findings[0].Content)
	assert.Equal(t, v.Tasks, got.Tasks)
	assert.Equal(t, v.Findings, got.Findings)
	assert.Equal(t, v.Decisions, got.Decisions)
	assert.Equal(t, v.History, got.History)
}

func TestParallelHistoryTimestampsDistinct(t *testing.T) {
	b := newTestBoard(t)

	clis := []string{"claude", "qwen", "gemini"}
	var wg sync.WaitGroup
	errs := make([]error, len(clis))
	for i, cli := range clis {
		wg.Add(1)
		go func(i int, cli string) {
			defer wg.Done()
			errs[i] = b.RecordTask(cli, "", "review module", TaskOutcome{Success: true})
		}(i, cli)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	s, err := b.Read()
	require.NoError(t, err)
	require.Len(t, s.History, len(clis))
	seen := map[time.Time]bool{}
	for _, h := range s.History {
		assert.False(t, seen[h.Timestamp], "duplicate history timestamp %s", h.Timestamp)
		seen[h.Timestamp] = true
	}
}

func TestParseSurvivesHumanEdits(t *testing.T) {
	doc := `# Project Status Board

Some free-form note a human added.

## Project Info
- **Name:** demo
- hand-written note that matches no grammar

## Current State
- **Current CLI:** none
- **Last Activity:** 2026-08-24T10:00:00Z

## Task Queue

### Pending
- [t-aaaaaaaa] do the thing (priority: normal, created: 2026-08-24T10:00:00Z)
- not a task line

## Key Findings

## Unrecognised Section
- [x] ignored
`
	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Project.Name)
	assert.Empty(t, s.CurrentCLI)
	require.Len(t, s.Tasks, 1)
	assert.Equal(t, "do the thing", s.Tasks[0].Task)
}

func TestInitializeIdempotent(t *testing.T) {
	dir := t.TempDir()
	b := Open(dir)
	require.NoError(t, b.Initialize(ProjectInfo{Name: "demo"}))
	require.NoError(t, b.RecordFinding("qwen", "perf", "slow startup"))

	// Re-initialising must not wipe recorded state.
	require.NoError(t, b.Initialize(ProjectInfo{Name: "other"}))

	s, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Project.Name)
	assert.Len(t, s.Findings, 1)
}

func TestRecordTaskAndFinding(t *testing.T) {
	b := newTestBoard(t)

	require.NoError(t, b.RecordTask("qwen", "", "task A", TaskOutcome{Success: true, Result: "ok"}))
	require.NoError(t, b.RecordFinding("qwen", "perf", "N+1 query in module Z"))

	s, err := b.Read()
	require.NoError(t, err)

	completed := s.TasksByStatus(StatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "task A", completed[0].Task)
	assert.Equal(t, "qwen", completed[0].CLI)
	assert.NotNil(t, completed[0].CompletedAt)

	require.Len(t, s.Findings, 1)
	assert.Equal(t, "perf", s.Findings[0].Category)

	require.Len(t, s.History, 2)
	assert.Equal(t, HistoryTask, s.History[0].Type)
	assert.Equal(t, HistoryFinding, s.History[1].Type)
	assert.Equal(t, "qwen", s.CurrentCLI)
}

func TestBeginTaskThenComplete(t *testing.T) {
	b := newTestBoard(t)

	id, err := b.BeginTask("claude", "refactor X")
	require.NoError(t, err)

	s, err := b.Read()
	require.NoError(t, err)
	require.Len(t, s.TasksByStatus(StatusOngoing), 1)

	require.NoError(t, b.RecordTask("claude", id, "refactor X", TaskOutcome{Success: true}))

	s, err = b.Read()
	require.NoError(t, err)
	assert.Empty(t, s.TasksByStatus(StatusOngoing))
	completed := s.TasksByStatus(StatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, id, completed[0].ID)
	assert.Equal(t, "ok", completed[0].Result)
}

func TestAppendOnlyHistory(t *testing.T) {
	b := newTestBoard(t)

	contents := []string{"first", "second", "third", "fourth"}
	for _, c := range contents {
		require.NoError(t, b.RecordFinding("iflow", "note", c))
	}

	s, err := b.Read()
	require.NoError(t, err)
	require.Len(t, s.Findings, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, s.Findings[i].Content, "findings reordered")
		assert.Equal(t, c, s.History[i].Content, "history reordered")
	}
}

func TestConcurrentUpdatesAllLand(t *testing.T) {
	b := newTestBoard(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.RecordDecision("qwen", "decision "+string(rune('A'+i)), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	s, err := b.Read()
	require.NoError(t, err)
	assert.Len(t, s.Decisions, writers, "a concurrent update was lost")
}

func TestUpdateRequiresLock(t *testing.T) {
	b := newTestBoard(t)

	// A stale lock blocks writers until the timeout.
	require.NoError(t, os.WriteFile(b.lockPath, []byte("12345\n"), 0600))
	t.Cleanup(func() { os.Remove(b.lockPath) })

	err := b.RecordFinding("qwen", "perf", "never lands")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContention)
	assert.Contains(t, err.Error(), "12345")
}

func TestContextSummary(t *testing.T) {
	b := newTestBoard(t)
	require.NoError(t, b.RecordTask("qwen", "", "task A", TaskOutcome{Success: true}))
	require.NoError(t, b.RecordFinding("qwen", "perf", "N+1 query"))
	require.NoError(t, b.RecordDecision("claude", "use markdown", "readable"))
	_, err := b.BeginTask("claude", "refactor parser")
	require.NoError(t, err)

	sum, err := b.ContextSummary(SummaryOptions{IncludeFindings: true, IncludeDecisions: true})
	require.NoError(t, err)

	assert.Contains(t, sum, "Project: demo")
	assert.Contains(t, sum, "refactor parser")
	assert.Contains(t, sum, "N+1 query")
	assert.Contains(t, sum, "use markdown")
	assert.Contains(t, sum, "Recent activity:")
}

func TestContextSummaryTruncatesHistoryOnly(t *testing.T) {
	b := newTestBoard(t)
	for i := 0; i < 15; i++ {
		require.NoError(t, b.RecordFinding("qwen", "note", "finding number "+string(rune('a'+i))))
	}

	sum, err := b.ContextSummary(SummaryOptions{MaxHistory: 3})
	require.NoError(t, err)
	// Only the last three history lines are rendered.
	assert.NotContains(t, sum, "finding number a")
	assert.Contains(t, sum, "finding number o")

	s, err := b.Read()
	require.NoError(t, err)
	assert.Len(t, s.History, 15, "summary must never truncate persisted state")
}

func TestReport(t *testing.T) {
	b := newTestBoard(t)
	require.NoError(t, b.RecordTask("qwen", "", "task A", TaskOutcome{Success: true, Result: "55"}))

	report, err := b.Report()
	require.NoError(t, err)
	assert.Contains(t, report, "Project: demo")
	assert.Contains(t, report, "task A")
	assert.Contains(t, report, "completed")
}

func TestReadWithoutInitialize(t *testing.T) {
	b := Open(filepath.Join(t.TempDir(), "nowhere"))
	_, err := b.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialised")
}
