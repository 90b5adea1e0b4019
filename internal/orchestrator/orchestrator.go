// Package orchestrator runs tasks against one or more CLIs: analyse,
// synthesise, supervise, recover, and record the result on the status
// board and execution log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/stigmergy/stig/internal/analyzer"
	"github.com/stigmergy/stig/internal/board"
	"github.com/stigmergy/stig/internal/execlog"
	"github.com/stigmergy/stig/internal/logging"
	"github.com/stigmergy/stig/internal/recovery"
	"github.com/stigmergy/stig/internal/registry"
	"github.com/stigmergy/stig/internal/supervisor"
	"github.com/stigmergy/stig/internal/synth"
)

// Mode selects the execution strategy.
type Mode string

const (
	ModeSingle       Mode = "single"
	ModeAutoFallback Mode = "auto-fallback"
	ModeParallel     Mode = "parallel"
)

// ErrUsage marks misconfiguration: unknown CLI, invalid mode, no CLIs.
var ErrUsage = errors.New("usage error")

// DefaultParallelism bounds concurrent children in parallel mode.
const DefaultParallelism = 3

const resumeTimeout = 10 * time.Second

// Options tunes one Execute call.
type Options struct {
	// Timeout per CLI invocation; zero means unbounded.
	Timeout time.Duration
	// IncludeContext overrides the mode default (on for auto-fallback
	// and parallel, off for single).
	IncludeContext *bool
	// Policy for the recovery ladder; zero value gets the default.
	Policy *recovery.Policy
	// Parallelism caps concurrent children in parallel mode.
	Parallelism int
	// Stdout and Stderr mirror child output live; nil keeps it captured
	// only.
	Stdout io.Writer
	Stderr io.Writer
}

// CLIResult is the outcome of one CLI's leg of an Execute call.
type CLIResult struct {
	CLI      string
	FinalCLI string
	Argv     []string
	Outcome  *supervisor.Outcome
	FellBack bool
	Attempts int
}

// Result aggregates an Execute call.
type Result struct {
	Success bool
	Results []CLIResult
}

// Runner abstracts the supervised run for testing.
type Runner func(ctx context.Context, desc *registry.Descriptor, argv []string, opts supervisor.Options) *supervisor.Outcome

// Orchestrator owns the per-call pipeline and the shared recording
// sinks.
type Orchestrator struct {
	reg      *registry.Registry
	analyzer *analyzer.Analyzer
	board    *board.Board
	log      *execlog.Log
	runner   Runner
}

// New wires an orchestrator. Board and log may be nil when no project
// recording is wanted.
func New(reg *registry.Registry, an *analyzer.Analyzer, b *board.Board, l *execlog.Log) *Orchestrator {
	return &Orchestrator{
		reg:      reg,
		analyzer: an,
		board:    b,
		log:      l,
		runner: func(ctx context.Context, desc *registry.Descriptor, argv []string, opts supervisor.Options) *supervisor.Outcome {
			return supervisor.Run(ctx, desc.Binary, argv, opts)
		},
	}
}

// Execute runs task against the given CLIs in the given mode.
func (o *Orchestrator) Execute(ctx context.Context, task string, mode Mode, clis []string, opts Options) (*Result, error) {
	if len(clis) == 0 {
		return nil, fmt.Errorf("%w: no CLI specified", ErrUsage)
	}
	for _, name := range clis {
		if _, ok := o.reg.Get(name); !ok {
			return nil, fmt.Errorf("%w: unknown CLI %q (known: %s)", ErrUsage, name, strings.Join(o.reg.Names(), ", "))
		}
	}

	switch mode {
	case ModeSingle:
		r := o.executeOne(ctx, clis[0], task, opts, false)
		return &Result{Success: r.Outcome.Success, Results: []CLIResult{r}}, nil
	case ModeAutoFallback:
		r := o.executeOne(ctx, clis[0], task, opts, true)
		return &Result{Success: r.Outcome.Success, Results: []CLIResult{r}}, nil
	case ModeParallel:
		return o.executeParallel(ctx, task, clis, opts)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrUsage, mode)
	}
}

func (o *Orchestrator) executeParallel(ctx context.Context, task string, clis []string, opts Options) (*Result, error) {
	limit := opts.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	sem := semaphore.NewWeighted(int64(limit))

	results := make([]CLIResult, len(clis))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range clis {
		i, name := i, name
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				mu.Lock()
				results[i] = CLIResult{CLI: name, FinalCLI: name, Outcome: &supervisor.Outcome{
					Error: err.Error(), Kind: supervisor.KindCanceled,
				}}
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			// Parallel children write over each other on a shared
			// terminal; keep their output captured.
			legOpts := opts
			legOpts.Stdout = nil
			legOpts.Stderr = nil

			r := o.executeOne(gctx, name, task, legOpts, true)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	agg := &Result{Results: results}
	for _, r := range results {
		if r.Outcome != nil && r.Outcome.Success {
			agg.Success = true
		}
	}
	return agg, nil
}

// executeOne is the single-CLI pipeline: analyse, inject context,
// synthesise, run (with or without the recovery ladder), record.
func (o *Orchestrator) executeOne(ctx context.Context, cli, task string, opts Options, withRecovery bool) CLIResult {
	desc, _ := o.reg.Get(cli)
	start := time.Now()

	pattern := o.analyzePattern(ctx, cli)

	summary := ""
	if o.includeContext(opts, withRecovery) {
		summary = o.contextSummary()
	}
	sctx := synth.Context{IncludeContext: summary != "", ContextHeader: summary}
	argv, _ := synth.Synthesize(desc, pattern, task, sctx)

	taskID := o.beginTask(cli, task)

	supOpts := supervisor.Options{
		CLI:     cli,
		Timeout: opts.Timeout,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
	}

	res := CLIResult{CLI: cli, FinalCLI: cli, Argv: argv}
	if withRecovery {
		policy := recovery.DefaultPolicy()
		if opts.Policy != nil {
			policy = *opts.Policy
		}
		coord := recovery.New(o.reg,
			func(ctx context.Context, d *registry.Descriptor, argv []string) *supervisor.Outcome {
				ro := supOpts
				ro.CLI = d.Name
				return o.runner(ctx, d, argv, ro)
			},
			func(ctx context.Context, d *registry.Descriptor) ([]string, error) {
				fbPattern := o.analyzePattern(ctx, d.Name)
				fbArgv, _ := synth.Synthesize(d, fbPattern, task, sctx)
				return fbArgv, nil
			},
			nil,
		)
		rec := coord.ExecuteWithRecovery(ctx, desc, argv, policy)
		res.Outcome = rec.Outcome
		res.FinalCLI = rec.CLI
		res.FellBack = rec.FellBack
		res.Attempts = len(rec.Attempts)
	} else {
		res.Outcome = o.runner(ctx, desc, argv, supOpts)
		res.Attempts = 1
	}

	o.record(res, task, taskID, time.Since(start))
	return res
}

// analyzePattern tolerates degraded analysis: descriptor defaults carry
// the synthesis when probing fails.
func (o *Orchestrator) analyzePattern(ctx context.Context, cli string) *analyzer.Pattern {
	p, err := o.analyzer.Analyze(ctx, cli, analyzer.Options{Enhanced: true})
	if err != nil {
		logging.Debugf("[orchestrator] analyze %s: %v", cli, err)
		return nil
	}
	if !p.Success {
		logging.Debugf("[orchestrator] %s analysis degraded, using descriptor defaults", cli)
	}
	return p
}

func (o *Orchestrator) includeContext(opts Options, withRecovery bool) bool {
	if opts.IncludeContext != nil {
		return *opts.IncludeContext
	}
	return withRecovery
}

func (o *Orchestrator) contextSummary() string {
	if o.board == nil {
		return ""
	}
	sum, err := o.board.ContextSummary(board.SummaryOptions{
		IncludeFindings:  true,
		IncludeDecisions: true,
	})
	if err != nil {
		logging.Debugf("[orchestrator] context summary: %v", err)
		return ""
	}
	return sum
}

func (o *Orchestrator) beginTask(cli, task string) string {
	if o.board == nil {
		return ""
	}
	id, err := o.withBoardRetry(func() (string, error) { return o.board.BeginTask(cli, task) })
	if err != nil {
		logging.Warnf("[orchestrator] board: %v", err)
		return ""
	}
	return id
}

func (o *Orchestrator) record(res CLIResult, task, taskID string, elapsed time.Duration) {
	out := res.Outcome

	if res.FellBack {
		logging.Infof("[orchestrator] %s failed (%s), switched to %s", res.CLI, shortCause(out), res.FinalCLI)
	}

	if o.board != nil {
		result := boardResult(out)
		_, err := o.withBoardRetry(func() (string, error) {
			return "", o.board.RecordTask(res.FinalCLI, taskID, task, board.TaskOutcome{
				Success: out.Success,
				Result:  result,
			})
		})
		if err != nil {
			logging.Warnf("[orchestrator] board: %v", err)
		}
	}

	if o.log != nil {
		o.log.Append(execlog.Entry{
			CLI:        res.FinalCLI,
			Task:       task,
			Argv:       res.Argv,
			Success:    out.Success,
			ExitCode:   out.ExitCode,
			Error:      out.Error,
			ElapsedMS:  elapsed.Milliseconds(),
			FellBack:   res.FellBack,
			Attempts:   res.Attempts,
			Interacted: out.InteractionDetected,
		})
	}
}

// withBoardRetry retries exactly once on lock contention before
// surfacing the error.
func (o *Orchestrator) withBoardRetry(fn func() (string, error)) (string, error) {
	v, err := fn()
	if errors.Is(err, board.ErrContention) {
		logging.Debugf("[orchestrator] board contended, retrying once")
		return fn()
	}
	return v, err
}

// boardResult condenses an outcome into a one-line board entry.
func boardResult(o *supervisor.Outcome) string {
	if o.Success {
		if s := firstLine(o.Stdout); s != "" {
			return s
		}
		return "ok"
	}
	if o.Error != "" {
		return o.Error
	}
	return fmt.Sprintf("Exit code %d", o.ExitCode)
}

func shortCause(o *supervisor.Outcome) string {
	switch o.Kind {
	case supervisor.KindInteractive:
		return "interactive prompt"
	case supervisor.KindNotInstalled:
		return "not installed"
	case supervisor.KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("exit %d", o.ExitCode)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// Resume invokes the CLI's own session-resume command, bounded by the
// resume timeout. The limit, when positive, is passed through as the
// command's final argument.
func (o *Orchestrator) Resume(ctx context.Context, cli string, limit int) (*supervisor.Outcome, error) {
	desc, ok := o.reg.Get(cli)
	if !ok {
		return nil, fmt.Errorf("%w: unknown CLI %q", ErrUsage, cli)
	}
	if len(desc.ResumeCommand) == 0 {
		return nil, fmt.Errorf("%s has no resume command", cli)
	}

	argv := append([]string(nil), desc.ResumeCommand[1:]...)
	if limit > 0 {
		argv = append(argv, fmt.Sprintf("%d", limit))
	}
	out := supervisor.Run(ctx, desc.ResumeCommand[0], argv, supervisor.Options{
		CLI:     cli,
		Timeout: resumeTimeout,
		Stdout:  nil,
		Stderr:  nil,
	})
	return out, nil
}
