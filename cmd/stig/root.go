package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/stigmergy/stig/internal/analyzer"
	"github.com/stigmergy/stig/internal/board"
	"github.com/stigmergy/stig/internal/execlog"
	"github.com/stigmergy/stig/internal/logging"
	"github.com/stigmergy/stig/internal/orchestrator"
	"github.com/stigmergy/stig/internal/registry"
)

// Sentinels commands return so main can map them to exit codes.
var (
	errAllFailed = errors.New("all CLIs failed")
	errCanceled  = errors.New("canceled")
)

// ExitCode maps a command error to the process exit code: 0 success,
// 1 all CLIs failed, 2 usage error, 3 cancellation.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, orchestrator.ErrUsage):
		return 2
	case errors.Is(err, errCanceled), errors.Is(err, context.Canceled):
		return 3
	default:
		return 1
	}
}

// projectRoot resolves --project, defaulting to the working directory.
func projectRoot() string {
	if projectDir != "" {
		return projectDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func statusDir() string {
	return board.DefaultDir(projectRoot())
}

// loadRegistry builds the registry with per-user overrides applied.
func loadRegistry() (*registry.Registry, error) {
	reg := registry.Builtin()
	if err := reg.ApplyOverrides(Cfg.RegistryOverridePath()); err != nil {
		return nil, err
	}
	return reg, nil
}

func newAnalyzer(reg *registry.Registry) *analyzer.Analyzer {
	an := analyzer.New(reg, analyzer.OpenStore(Cfg.PatternCachePath()))
	if Cfg.PatternTTLHours > 0 {
		an.SetTTL(time.Duration(Cfg.PatternTTLHours) * time.Hour)
	}
	return an
}

// buildOrchestrator wires the full pipeline against the project's board.
func buildOrchestrator() (*orchestrator.Orchestrator, *board.Board, error) {
	if verbose {
		logging.SetDebug(true)
	}
	reg, err := loadRegistry()
	if err != nil {
		return nil, nil, err
	}
	dir := statusDir()
	b := board.Open(dir)
	orch := orchestrator.New(reg, newAnalyzer(reg), b, execlog.Open(dir))
	return orch, b, nil
}

func initBoard(b *board.Board) error {
	root := projectRoot()
	return b.Initialize(board.ProjectInfo{
		Name: defaultProjectName(root),
		Root: root,
	})
}

func defaultProjectName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Base(root)
	}
	return filepath.Base(abs)
}
