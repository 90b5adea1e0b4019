package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stigmergy/stig/internal/orchestrator"
)

// ResumeCmd creates the resume command
func ResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <cli> [<limit>]",
		Short: "Invoke a CLI's own session-resume command",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 0 {
					return fmt.Errorf("%w: limit must be a non-negative integer", orchestrator.ErrUsage)
				}
				limit = n
			}

			orch, _, err := buildOrchestrator()
			if err != nil {
				return err
			}
			out, err := orch.Resume(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if s := strings.TrimSpace(out.Stdout); s != "" {
				fmt.Println(s)
			}
			if !out.Success {
				return fmt.Errorf("resume failed: %s", out.Error)
			}
			return nil
		},
	}
}
