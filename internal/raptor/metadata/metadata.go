// Package metadata persists the bookkeeping the in-memory store tracks
// transiently - per-file mtimes, project identity, and the indexing
// checkpoint - as a small SQLite database alongside the binary tree
// snapshot. The tree and embeddings themselves still round-trip through
// the gob-encoded cache (internal/raptor/cache); this is the structured
// sibling the teacher's own internal/store metadata layer plays for the
// BM25 index, applied here to indexing bookkeeping instead.
package metadata

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo required
)

// Store wraps a single SQLite database recording indexing bookkeeping
// for one project. Not safe for concurrent use from multiple processes
// beyond what SQLite's own WAL mode arbitrates.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS file_mtimes (
	path  TEXT PRIMARY KEY,
	mtime INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS project_metadata (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	path       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	stage    TEXT NOT NULL,
	progress INTEGER NOT NULL,
	total    INTEGER NOT NULL
);
`

// Open creates or opens the metadata database at path, creating its
// parent directory and schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create metadata dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetFileMtime records path's last-indexed modification time.
func (s *Store) SetFileMtime(path string, mtime int64) error {
	_, err := s.db.Exec(`
		INSERT INTO file_mtimes(path, mtime) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime`, path, mtime)
	if err != nil {
		return fmt.Errorf("set file mtime: %w", err)
	}
	return nil
}

// FileMtime returns path's last-recorded modification time, or
// ok=false if path has never been indexed.
func (s *Store) FileMtime(path string) (mtime int64, ok bool, err error) {
	row := s.db.QueryRow(`SELECT mtime FROM file_mtimes WHERE path = ?`, path)
	if err := row.Scan(&mtime); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read file mtime: %w", err)
	}
	return mtime, true, nil
}

// ForgetFile drops path's recorded mtime, so it's treated as never
// indexed on the next pass.
func (s *Store) ForgetFile(path string) error {
	_, err := s.db.Exec(`DELETE FROM file_mtimes WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("forget file: %w", err)
	}
	return nil
}

// SetProjectMetadata records the project's root path and the time its
// index was first created.
func (s *Store) SetProjectMetadata(path string, createdAt int64) error {
	_, err := s.db.Exec(`
		INSERT INTO project_metadata(id, path, created_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path = excluded.path, created_at = excluded.created_at`, path, createdAt)
	if err != nil {
		return fmt.Errorf("set project metadata: %w", err)
	}
	return nil
}

// ProjectMetadata returns the recorded project path and creation time,
// or ok=false if no project has been recorded yet.
func (s *Store) ProjectMetadata() (path string, createdAt int64, ok bool, err error) {
	row := s.db.QueryRow(`SELECT path, created_at FROM project_metadata WHERE id = 1`)
	if err := row.Scan(&path, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("read project metadata: %w", err)
	}
	return path, createdAt, true, nil
}

// SaveCheckpoint records indexing progress so an interrupted run can
// report where it left off (the tree itself is only durable once the
// cache snapshot is written; this is a lighter-weight "were we still
// embedding or clustering" marker).
func (s *Store) SaveCheckpoint(stage string, progress, total int) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints(id, stage, progress, total) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET stage = excluded.stage, progress = excluded.progress, total = excluded.total`,
		stage, progress, total)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Checkpoint returns the last recorded indexing stage and progress, or
// ok=false if none has been saved.
func (s *Store) Checkpoint() (stage string, progress, total int, ok bool, err error) {
	row := s.db.QueryRow(`SELECT stage, progress, total FROM checkpoints WHERE id = 1`)
	if err := row.Scan(&stage, &progress, &total); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, 0, false, nil
		}
		return "", 0, 0, false, fmt.Errorf("read checkpoint: %w", err)
	}
	return stage, progress, total, true, nil
}

// Clear removes all recorded bookkeeping, leaving an empty schema.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM file_mtimes; DELETE FROM project_metadata; DELETE FROM checkpoints;`)
	if err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	return nil
}
