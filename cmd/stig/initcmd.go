package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stigmergy/stig/internal/board"
)

// InitCmd creates the init command
func InitCmd() *cobra.Command {
	var name, phase string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise the project status board",
		Long: `Init seeds <project>/.stigmergy/status/PROJECT_STATUS.md. Running it
on an existing board is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := Cfg.EnsureDataDir(); err != nil {
				return err
			}

			root := projectRoot()
			if name == "" {
				name = defaultProjectName(root)
			}
			b := board.Open(statusDir())
			if err := b.Initialize(board.ProjectInfo{Name: name, Root: root, Phase: phase}); err != nil {
				return err
			}
			fmt.Printf("status board ready at %s\n", b.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (default: directory name)")
	cmd.Flags().StringVar(&phase, "phase", "", "initial project phase")
	return cmd
}
