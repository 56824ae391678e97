package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index occupancy and cache hit rate",
		Long: `Stats indexes path (reusing the on-disk cache and skipping
unchanged files, so a prior index makes this instant) and reports chunk
and node counts alongside the preloader's embedding cache hit rate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, err := resolveProjectPath(path)
			if err != nil {
				return err
			}
			eng, err := buildEngine(projectPath)
			if err != nil {
				return err
			}
			if err := eng.Index(cmd.Context(), projectPath); err != nil {
				return fmt.Errorf("index %s: %w", projectPath, err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), eng.Stats().Report())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")
	return cmd
}
