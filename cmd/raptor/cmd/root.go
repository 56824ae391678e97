// Package cmd provides the CLI commands for the raptor hierarchical
// code index.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raptorlabs/raptor/internal/logging"
	"github.com/raptorlabs/raptor/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the raptor CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raptor",
		Short: "Hierarchical semantic code index",
		Long: `raptor builds a recursive abstractive tree over a codebase -
chunk, embed, cluster into summaries, cluster the summaries again - and
lets you query it with a centroid-guided descent that falls back to
flat chunk search when nothing in the tree is confident enough.

Run 'raptor index .' once, then 'raptor query "..."' as often as you like.`,
		Version:      version.Version,
		SilenceUsage: true,
	}

	cmd.SetVersionTemplate("raptor version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.raptor/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

// startLogging wires the --debug flag to a rotating JSON log file; without
// it, slog's default stderr text handler is left in place.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
