package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the in-memory index and delete the on-disk cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, err := resolveProjectPath(path)
			if err != nil {
				return err
			}
			eng, err := buildEngine(projectPath)
			if err != nil {
				return err
			}
			eng.Clear()

			cacheDir, err := resolveCacheDir(projectPath)
			if err != nil {
				return err
			}
			if err := os.RemoveAll(cacheDir); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove cache directory: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared index and cache for %s\n", projectPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")
	return cmd
}
