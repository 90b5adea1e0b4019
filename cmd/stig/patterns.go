package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/stigmergy/stig/internal/analyzer"
)

// PatternsCmd creates the patterns command
func PatternsCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Show analysed CLI invocation patterns",
		Long: `Patterns shows what stig has learned about each registered CLI from
its help output: prompt flag, non-interactive flag, and interaction
mode. With --refresh, every installed CLI is re-probed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			an := newAnalyzer(reg)

			var patterns map[string]*analyzer.Pattern
			if refresh {
				patterns = an.AnalyzeAll(cmd.Context(), reg.Names(), analyzer.Options{ForceRefresh: true})
			} else {
				patterns = cachedOrProbed(cmd.Context(), an, reg.Names())
			}

			names := make([]string, 0, len(patterns))
			for name := range patterns {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("%s %s %s %s %s\n",
				runewidth.FillRight("CLI", 10),
				runewidth.FillRight("VERSION", 14),
				runewidth.FillRight("MODE", 16),
				runewidth.FillRight("PROMPT", 10),
				"STATUS")
			for _, name := range names {
				p := patterns[name]
				status := "ok"
				if !p.Success {
					status = "unavailable"
					if p.LastFailure != nil {
						status = fmt.Sprintf("unavailable (%d attempts)", p.LastFailure.Attempts)
					}
				}
				fmt.Printf("%s %s %s %s %s\n",
					runewidth.FillRight(name, 10),
					runewidth.FillRight(orDash(p.Version), 14),
					runewidth.FillRight(orDash(string(p.InteractionMode)), 16),
					runewidth.FillRight(orDash(p.PromptFlag), 10),
					status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-probe every CLI, ignoring the cache")
	return cmd
}

func cachedOrProbed(ctx context.Context, an *analyzer.Analyzer, names []string) map[string]*analyzer.Pattern {
	return an.AnalyzeAll(ctx, names, analyzer.Options{})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
