package metadata

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// TestSchema_CompatibleWithCGODriver guards against the schema drifting
// onto a modernc.org/sqlite-specific SQL extension: the same schema
// string, applied through the cgo mattn/go-sqlite3 driver, must create
// without error. Mirrors the teacher's own dual-driver test pattern
// (internal/telemetry/store_test.go) for its metadata tables.
func TestSchema_CompatibleWithCGODriver(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cgo.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(schema)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO file_mtimes(path, mtime) VALUES (?, ?)`, "a.go", 42)
	require.NoError(t, err)

	var mtime int64
	require.NoError(t, db.QueryRow(`SELECT mtime FROM file_mtimes WHERE path = ?`, "a.go").Scan(&mtime))
	require.EqualValues(t, 42, mtime)
}
