package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/raptorlabs/raptor/internal/config"
	"github.com/raptorlabs/raptor/internal/raptor/embed"
	"github.com/raptorlabs/raptor/internal/raptor/index"
	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/pkg/raptor"
)

// cacheDirName is where raptor keeps its on-disk tree snapshots, a
// sibling of the project's .raptor.yaml config file.
const cacheDirName = ".raptor"

// resolveProjectPath turns a CLI path argument into an absolute path,
// defaulting to the current directory.
func resolveProjectPath(arg string) (string, error) {
	path := arg
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

// resolveCacheDir returns the on-disk cache directory for a project,
// without creating it.
func resolveCacheDir(projectPath string) (string, error) {
	root, err := config.FindProjectRoot(projectPath)
	if err != nil {
		root = projectPath
	}
	return filepath.Join(root, cacheDirName), nil
}

// buildEngine constructs a raptor.Engine configured from the project's
// .raptor.yaml (if any) and a per-project on-disk cache directory.
func buildEngine(projectPath string) (*raptor.Engine, error) {
	root, err := config.FindProjectRoot(projectPath)
	if err != nil {
		root = projectPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		slog.Warn("raptor: failed to load project config, using defaults", slog.String("error", err.Error()))
		cfg = config.NewConfig()
	}

	cacheDir := filepath.Join(root, cacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	opts := index.Options{
		MaxChars:         cfg.Raptor.MaxChars,
		OverlapChars:     cfg.Raptor.OverlapChars,
		ClusterThreshold: float32(cfg.Raptor.ClusterThreshold),
		RetryMultiplier:  index.DefaultOptions().RetryMultiplier,
		EmbedBatchSize:   cfg.Raptor.EmbedBatchSize,
	}

	engineOpts := []raptor.Option{
		raptor.WithEmbedder(embed.NewDefaultEmbedder()),
		raptor.WithCacheDir(cacheDir),
		raptor.WithIndexOptions(opts),
		raptor.WithMemoryTierOverride(uint64(cfg.Raptor.MemoryTierOverrideGB)),
		raptor.WithPreloadBatchSize(cfg.Raptor.BatchSizePreload),
	}

	if cfg.Raptor.MaxChunksOverride > 0 || cfg.Raptor.MaxNodesOverride > 0 {
		limits := memtier.DetectLimits(uint64(cfg.Raptor.MemoryTierOverrideGB))
		if cfg.Raptor.MaxChunksOverride > 0 {
			limits.MaxChunks = cfg.Raptor.MaxChunksOverride
		}
		if cfg.Raptor.MaxNodesOverride > 0 {
			limits.MaxNodes = cfg.Raptor.MaxNodesOverride
		}
		engineOpts = append(engineOpts, raptor.WithCapacityOverride(limits))
	}

	return raptor.New(engineOpts...)
}
