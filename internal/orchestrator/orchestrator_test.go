package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stigmergy/stig/internal/analyzer"
	"github.com/stigmergy/stig/internal/board"
	"github.com/stigmergy/stig/internal/execlog"
	"github.com/stigmergy/stig/internal/recovery"
	"github.com/stigmergy/stig/internal/registry"
	"github.com/stigmergy/stig/internal/supervisor"
)

// fixture builds an orchestrator over stub CLIs and a real board in a
// temp dir. Binaries are "sh" so availability checks pass; the runner is
// stubbed so nothing real is spawned.
type fixture struct {
	orch  *Orchestrator
	board *board.Board
	reg   *registry.Registry

	mu   sync.Mutex
	runs []string // CLI name per supervised run
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	reg := registry.New([]*registry.Descriptor{
		{Name: "alpha", Binary: "sh", VersionProbe: []string{"-c", "echo 1.0.0"},
			HelpProbes: [][]string{{"-c", "echo usage"}},
			Template:   registry.TemplatePositional, AutoApproveFlags: []string{"-y"}, Fallback: "beta"},
		{Name: "beta", Binary: "sh", VersionProbe: []string{"-c", "echo 1.0.0"},
			HelpProbes: [][]string{{"-c", "echo usage"}},
			Template:   registry.TemplatePositional, AutoApproveFlags: []string{"--yolo"}},
		{Name: "gamma", Binary: "sh", VersionProbe: []string{"-c", "echo 1.0.0"},
			HelpProbes: [][]string{{"-c", "echo usage"}},
			Template:   registry.TemplatePositional, AutoApproveFlags: []string{"-y"}},
	})

	an := analyzer.New(reg, analyzer.OpenStore(filepath.Join(dir, "cli-patterns.json")))

	b := board.Open(filepath.Join(dir, "status"))
	if err := b.Initialize(board.ProjectInfo{Name: "demo", Root: dir}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{reg: reg, board: b}
	f.orch = New(reg, an, b, execlog.Open(filepath.Join(dir, "status")))
	return f
}

// stubRunner records calls and answers by CLI name; unnamed CLIs fail.
func (f *fixture) stubRunner(succeedFor map[string]string) {
	f.orch.runner = func(ctx context.Context, desc *registry.Descriptor, argv []string, opts supervisor.Options) *supervisor.Outcome {
		f.mu.Lock()
		f.runs = append(f.runs, desc.Name)
		f.mu.Unlock()
		if stdout, ok := succeedFor[desc.Name]; ok {
			return &supervisor.Outcome{Success: true, Stdout: stdout}
		}
		return &supervisor.Outcome{NeedsRecovery: true, ExitCode: 1, Error: "Exit code 1", Kind: supervisor.KindExit}
	}
}

func TestExecuteSingle(t *testing.T) {
	f := newFixture(t)
	f.stubRunner(map[string]string{"alpha": "55"})

	res, err := f.orch.Execute(context.Background(), "sum 1..10", ModeSingle, []string{"alpha"}, Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success || len(res.Results) != 1 {
		t.Fatalf("result = %+v", res)
	}

	r := res.Results[0]
	if r.Argv[0] != "sum 1..10" || r.Argv[len(r.Argv)-1] != "-y" {
		t.Errorf("argv = %v", r.Argv)
	}
	if r.Outcome.Stdout != "55" {
		t.Errorf("stdout = %q", r.Outcome.Stdout)
	}

	s, err := f.board.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.History) != 1 || s.History[0].CLI != "alpha" || s.History[0].Type != board.HistoryTask {
		t.Errorf("history = %+v", s.History)
	}
	if s.History[0].Result != "55" {
		t.Errorf("history result = %q", s.History[0].Result)
	}
	completed := s.TasksByStatus(board.StatusCompleted)
	if len(completed) != 1 || completed[0].Task != "sum 1..10" {
		t.Errorf("completed = %+v", completed)
	}
}

func TestExecuteSingleNoRecovery(t *testing.T) {
	f := newFixture(t)
	f.stubRunner(nil) // everything fails

	res, err := f.orch.Execute(context.Background(), "task", ModeSingle, []string{"alpha"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("Success = true")
	}
	if len(f.runs) != 1 {
		t.Errorf("runs = %v, single mode must not retry or fall back", f.runs)
	}
}

func TestExecuteAutoFallback(t *testing.T) {
	f := newFixture(t)
	f.stubRunner(map[string]string{"beta": "done"})

	res, err := f.orch.Execute(context.Background(), "task", ModeAutoFallback, []string{"alpha"},
		Options{Policy: &recovery.Policy{MaxRetries: 1, EnableResume: true, EnableFallback: true}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	r := res.Results[0]
	if !r.FellBack || r.FinalCLI != "beta" || r.CLI != "alpha" {
		t.Errorf("leg = %+v", r)
	}
	// initial + one retry on alpha, then beta.
	want := []string{"alpha", "alpha", "beta"}
	if len(f.runs) != len(want) {
		t.Fatalf("runs = %v, want %v", f.runs, want)
	}
	for i := range want {
		if f.runs[i] != want[i] {
			t.Errorf("runs[%d] = %s, want %s", i, f.runs[i], want[i])
		}
	}

	s, _ := f.board.Read()
	if s.CurrentCLI != "beta" {
		t.Errorf("CurrentCLI = %q, want the CLI that finished the task", s.CurrentCLI)
	}
}

func TestExecuteParallel(t *testing.T) {
	f := newFixture(t)
	var live, peak atomic.Int32
	f.orch.runner = func(ctx context.Context, desc *registry.Descriptor, argv []string, opts supervisor.Options) *supervisor.Outcome {
		n := live.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer live.Add(-1)
		return &supervisor.Outcome{Success: true, Stdout: "ok from " + desc.Name}
	}

	res, err := f.orch.Execute(context.Background(), "refactor X", ModeParallel,
		[]string{"alpha", "beta", "gamma"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.Results) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if p := peak.Load(); p > DefaultParallelism {
		t.Errorf("peak concurrency = %d, limit %d", p, DefaultParallelism)
	}

	s, _ := f.board.Read()
	seen := map[string]bool{}
	stamps := map[time.Time]bool{}
	for _, h := range s.History {
		if h.Type == board.HistoryTask {
			seen[h.CLI] = true
			if stamps[h.Timestamp] {
				t.Errorf("history timestamp %s recorded twice", h.Timestamp)
			}
			stamps[h.Timestamp] = true
		}
	}
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if !seen[name] {
			t.Errorf("no history entry for %s", name)
		}
	}
}

func TestExecuteUnknownCLI(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Execute(context.Background(), "task", ModeSingle, []string{"nosuch"}, Options{})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestExecuteNoCLIs(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Execute(context.Background(), "task", ModeSingle, nil, Options{})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestResumeUnknownCLI(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Resume(context.Background(), "nosuch", 0)
	if !errors.Is(err, ErrUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestResumeWithoutResumeCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Resume(context.Background(), "alpha", 0)
	if err == nil {
		t.Error("alpha has no resume command, want error")
	}
}
