package index

import (
	"context"

	"github.com/raptorlabs/raptor/internal/scanner"
)

// skipDirPatterns mirrors the original builder's SKIP_DIRS: directories
// whose contents are never worth indexing, expressed as scanner exclude
// globs so they compose with the teacher's gitignore-aware scanner
// instead of a second bespoke walker.
var skipDirPatterns = []string{
	"**/target/**",
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/venv/**",
	"**/.cache/**",
	"**/.next/**",
	"**/coverage/**",
	"**/.idea/**",
	"**/.vscode/**",
	"**/vendor/**",
	"**/packages/**",
	"**/.cargo/**",
	"**/out/**",
	"**/bin/**",
	"**/obj/**",
}

// indexableExtensions is the allowlist of file extensions worth
// chunking, carried over from the original's quick_index_sync.
var indexableExtensions = map[string]bool{
	"rs": true, "py": true, "js": true, "ts": true, "tsx": true, "jsx": true,
	"go": true, "java": true, "c": true, "cpp": true, "h": true, "hpp": true,
	"md": true, "toml": true, "yaml": true, "yml": true, "json": true, "txt": true,
	"sh": true, "bash": true, "zsh": true, "rb": true, "php": true, "swift": true,
	"kt": true, "scala": true, "r": true, "lua": true, "sql": true,
	"html": true, "css": true, "scss": true,
}

func isIndexableExtension(lang string) bool {
	return indexableExtensions[lang]
}

// discoverFiles walks path using the teacher's gitignore-aware Scanner,
// restricted to the indexable extension allowlist and the RAPTOR skip-dir
// set, and returns every discovered file. Errors surfaced for individual
// entries are skipped rather than aborting the whole scan, matching the
// original's "Ok(e) filter" tolerance for unreadable entries.
func discoverFiles(ctx context.Context, s *scanner.Scanner, path string) ([]*scanner.FileInfo, error) {
	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          path,
		ExcludePatterns:  skipDirPatterns,
		RespectGitignore: true,
	})
	if err != nil {
		return nil, err
	}

	var files []*scanner.FileInfo
	for res := range results {
		if res.Error != nil {
			continue
		}
		if !isIndexableExtension(res.File.Language) && !extensionAllowed(res.File.Path) {
			continue
		}
		files = append(files, res.File)
	}
	return files, nil
}

// extensionAllowed falls back to a raw extension check for files the
// scanner's language map doesn't recognize (e.g. .txt, .toml), since
// FileInfo.Language is only populated for languages the teacher's
// scanner models as source code.
func extensionAllowed(path string) bool {
	ext := ""
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			ext = path[i+1:]
			break
		}
	}
	return indexableExtensions[ext]
}
