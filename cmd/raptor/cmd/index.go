package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	raptorindex "github.com/raptorlabs/raptor/internal/raptor/index"
	"github.com/raptorlabs/raptor/internal/ui"
	"github.com/raptorlabs/raptor/pkg/raptor"
)

func newIndexCmd() *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build the hierarchical index for a project",
		Long: `Index scans path (the current directory by default), chunks every
indexable file, embeds the chunks, and clusters them bottom-up into a
hierarchical tree. Running it again reuses unchanged files and, if a
cache directory exists, reuses the tree entirely when nothing changed.

With --watch, raptor keeps running after the first build, watching the
project for file changes and rebuilding whenever one lands, until
interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			path, err := resolveProjectPath(arg)
			if err != nil {
				return err
			}

			if watchFlag {
				return runIndexWatch(ctx, cmd, path)
			}
			return runIndex(ctx, cmd, path)
		},
	}

	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Keep running, rebuilding on file changes")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string) error {
	eng, err := buildEngine(path)
	if err != nil {
		return err
	}
	return indexOnce(ctx, cmd, eng, path)
}

func indexOnce(ctx context.Context, cmd *cobra.Command, eng *raptor.Engine, path string) error {
	progressCh := eng.SubscribeProgress()
	done := make(chan struct{})
	go renderProgress(cmd, progressCh, done)

	start := time.Now()
	if err := eng.Index(ctx, path); err != nil {
		<-done
		return fmt.Errorf("index %s: %w", path, err)
	}
	<-done

	stats := eng.Stats()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s in %s\n%s\n", path, time.Since(start).Round(time.Millisecond), stats.Report())
	return nil
}

// runIndexWatch builds the index once, then calls Index every two
// seconds until ctx is cancelled; StartWatching marks changed files
// dirty so those passes re-chunk them.
func runIndexWatch(ctx context.Context, cmd *cobra.Command, path string) error {
	eng, err := buildEngine(path)
	if err != nil {
		return err
	}
	if err := indexOnce(ctx, cmd, eng, path); err != nil {
		return err
	}

	stop, err := eng.StartWatching(ctx, path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)...\n", path)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := eng.Index(ctx, path); err != nil && ctx.Err() == nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "reindex failed: %v\n", err)
			}
		}
	}
}

// renderProgress drains progressCh until it closes, printing one line
// per stage transition on a plain writer and overwriting a single line
// in place when stdout is a terminal.
func renderProgress(cmd *cobra.Command, progressCh <-chan raptorindex.ProgressEvent, done chan<- struct{}) {
	defer close(done)
	out := cmd.OutOrStdout()
	tty := ui.IsTTY(os.Stdout) && !ui.DetectCI()

	var lastStage raptorindex.Stage
	for ev := range progressCh {
		line := fmt.Sprintf("[%-10s] %d/%d %s", ev.Stage, ev.Current, ev.Total, ev.Detail)
		if tty {
			_, _ = fmt.Fprintf(out, "\r%-100s", line)
			if ev.Stage == raptorindex.StageComplete {
				_, _ = fmt.Fprintln(out)
			}
		} else if ev.Stage != lastStage || ev.Stage == raptorindex.StageComplete {
			_, _ = fmt.Fprintln(out, line)
		}
		lastStage = ev.Stage
	}
}
