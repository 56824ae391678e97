package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/raptorlabs/raptor/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		level   string
		pattern string
		lines   int
		follow  bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail the debug log file",
		Long: `Logs reads ~/.raptor/logs/raptor.log, the file --debug mode writes
to, and prints it formatted and filtered. Only meaningful after running a
prior command with --debug; otherwise the log file does not exist yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var re *regexp.Regexp
			if pattern != "" {
				compiled, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --pattern: %w", err)
				}
				re = compiled
			}

			v := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Pattern: re,
				NoColor: noColor,
			}, cmd.OutOrStdout())

			path := logging.DefaultLogPath()
			entries, err := v.Tail(path, lines)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			v.Print(entries)

			if !follow {
				return nil
			}

			ch := make(chan logging.LogEntry, 64)
			go func() {
				for entry := range ch {
					v.Print([]logging.LogEntry{entry})
				}
			}()
			return v.Follow(cmd.Context(), path, ch)
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only show lines matching this regexp")
	cmd.Flags().IntVar(&lines, "lines", 100, "Number of trailing lines to show")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep reading new lines as they're written")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI color in output")
	return cmd
}
