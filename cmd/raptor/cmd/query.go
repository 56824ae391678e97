package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raptorlabs/raptor/internal/raptor/retrieve"
)

func newQueryCmd() *cobra.Command {
	var (
		path           string
		topK           int
		expandK        int
		chunkThreshold float64
		withChunks     bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the index for the closest summaries or chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			projectPath, err := resolveProjectPath(path)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), cmd, projectPath, text, topK, expandK, float32(chunkThreshold), withChunks)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory to query")
	cmd.Flags().IntVar(&topK, "top", 5, "Number of top hits to return")
	cmd.Flags().IntVar(&expandK, "expand", 5, "Chunk fallback hits to return when no summary is confident")
	cmd.Flags().Float64Var(&chunkThreshold, "chunk-threshold", 0.5, "Minimum summary score before falling back to chunk search")
	cmd.Flags().BoolVar(&withChunks, "with-chunks", false, "Also show chunk-level fallback hits when no summary reaches --chunk-threshold")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, projectPath, text string, topK, expandK int, chunkThreshold float32, withChunks bool) error {
	eng, err := buildEngine(projectPath)
	if err != nil {
		return err
	}

	if err := eng.Index(ctx, projectPath); err != nil {
		return fmt.Errorf("index %s: %w", projectPath, err)
	}

	if !withChunks {
		hits, err := eng.Query(ctx, text, topK)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		printHits(cmd, "Results", hits)
		return nil
	}

	summaries, chunks, err := eng.QueryWithContext(ctx, text, topK, expandK, chunkThreshold)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	printHits(cmd, "Summaries", summaries)
	if len(chunks) > 0 {
		printHits(cmd, "Chunks", chunks)
	}
	return nil
}

func printHits(cmd *cobra.Command, label string, hits []retrieve.Hit) {
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		_, _ = fmt.Fprintf(out, "%s: (none)\n", label)
		return
	}
	_, _ = fmt.Fprintf(out, "%s:\n", label)
	for i, h := range hits {
		preview := h.Text
		if len(preview) > 160 {
			preview = preview[:160] + "..."
		}
		_, _ = fmt.Fprintf(out, "  %d. [%.3f] %s\n", i+1, h.Score, strings.ReplaceAll(preview, "\n", " "))
	}
}
