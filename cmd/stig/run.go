package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stigmergy/stig/internal/orchestrator"
	"github.com/stigmergy/stig/internal/recovery"
)

// RunCmd creates the run command
func RunCmd() *cobra.Command {
	var (
		autoMode     bool
		parallelMode bool
		timeoutSecs  int
		noContext    bool
	)

	cmd := &cobra.Command{
		Use:   `run <cli>[,<cli>...] "<task>"`,
		Short: "Run a task through one or more AI CLIs",
		Long: `Run synthesises a non-interactive invocation for the given CLI and
supervises it to completion.

  stig run qwen "sum 1..10"                      one CLI, no recovery
  stig run --auto claude "refactor pkg/parser"   retry, resume, fall back
  stig run --parallel claude,qwen,iflow "review" fan out, limit 3 at once`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if autoMode && parallelMode {
				return fmt.Errorf("%w: --auto and --parallel are mutually exclusive", orchestrator.ErrUsage)
			}

			clis := strings.Split(args[0], ",")
			for i := range clis {
				clis[i] = strings.TrimSpace(clis[i])
			}
			task := args[1]

			mode := orchestrator.ModeSingle
			switch {
			case parallelMode:
				mode = orchestrator.ModeParallel
			case autoMode:
				mode = orchestrator.ModeAutoFallback
			}
			if len(clis) > 1 && mode != orchestrator.ModeParallel {
				return fmt.Errorf("%w: multiple CLIs need --parallel", orchestrator.ErrUsage)
			}

			orch, b, err := buildOrchestrator()
			if err != nil {
				return err
			}
			if err := initBoard(b); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			timeout := time.Duration(Cfg.InvokeTimeoutSecs) * time.Second
			if cmd.Flags().Changed("timeout") {
				timeout = time.Duration(timeoutSecs) * time.Second
			}

			opts := orchestrator.Options{
				Timeout:     timeout,
				Parallelism: Cfg.Parallelism,
				Policy: &recovery.Policy{
					MaxRetries:     Cfg.MaxRetries,
					EnableResume:   Cfg.EnableResume,
					EnableFallback: Cfg.EnableFallback,
				},
			}
			if noContext {
				off := false
				opts.IncludeContext = &off
			}
			if mode != orchestrator.ModeParallel {
				opts.Stdout = os.Stdout
				opts.Stderr = os.Stderr
			}

			res, err := orch.Execute(ctx, task, mode, clis, opts)
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return errCanceled
			}

			printResults(res)
			if !res.Success {
				return errAllFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoMode, "auto", false, "retry with resume and fall back to a sibling CLI on failure")
	cmd.Flags().BoolVar(&parallelMode, "parallel", false, "run the task on every listed CLI concurrently")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "per-invocation timeout in seconds (0 = unbounded)")
	cmd.Flags().BoolVar(&noContext, "no-context", false, "skip status board context injection")
	return cmd
}

func printResults(res *orchestrator.Result) {
	for _, r := range res.Results {
		label := r.CLI
		if r.FellBack {
			label = fmt.Sprintf("%s→%s", r.CLI, r.FinalCLI)
		}
		if r.Outcome.Success {
			fmt.Printf("\033[32m✓ %s\033[0m (%s)\n", label, r.Outcome.Duration.Round(time.Millisecond))
			if len(res.Results) > 1 {
				if out := strings.TrimSpace(r.Outcome.Stdout); out != "" {
					fmt.Println(indent(out))
				}
			}
		} else {
			fmt.Printf("\033[31m✗ %s\033[0m: %s\n", label, r.Outcome.Error)
		}
	}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = "  " + lines[i]
	}
	return strings.Join(lines, "\n")
}
