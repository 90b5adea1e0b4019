package cli

import (
	"github.com/spf13/cobra"

	"github.com/stigmergy/stig/internal/config"
)

// Shared CLI flags (used across multiple command files)
var (
	projectDir string
	verbose    bool
)

// Cfg holds the loaded configuration (set by main)
var Cfg *config.Config

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	Cfg = c

	rootCmd := &cobra.Command{
		Use:   "stig",
		Short: "stig - multi-CLI orchestrator",
		Long: `stig drives AI coding CLIs (claude, gemini, qwen, codex, ...)
non-interactively: it probes each CLI's capabilities, synthesises a safe
invocation, supervises the child process, retries or falls back on
failure, and coordinates the CLIs through a shared Markdown status board.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project root (default: working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add commands
	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(ResumeCmd())
	rootCmd.AddCommand(PatternsCmd())
	rootCmd.AddCommand(InitCmd())

	return rootCmd
}
