package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/stigmergy/stig/internal/board"
	"github.com/stigmergy/stig/internal/logging"
)

// StatusCmd creates the status command
func StatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the project status board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := board.Open(statusDir())

			report, err := b.Report()
			if err != nil {
				return err
			}
			fmt.Print(report)

			if !watch {
				return nil
			}
			return watchBoard(cmd, b)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-print on every board change")
	return cmd
}

// watchBoard re-renders the report whenever the board file changes.
// Writers replace the file by rename, so watch the directory and filter
// on the file name.
func watchBoard(cmd *cobra.Command, b *board.Board) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(b.Path())); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Debounce: a rename fires several events in a burst.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != board.FileName {
				continue
			}
			pending = time.After(150 * time.Millisecond)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Debugf("[status] watcher: %v", err)
		case <-pending:
			pending = nil
			report, err := b.Report()
			if err != nil {
				continue
			}
			fmt.Printf("\033[2J\033[H%s", report)
		}
	}
}
