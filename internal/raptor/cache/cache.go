// Package cache persists a RAPTOR store snapshot to disk and validates
// it for reuse across process restarts, following the Rust original's
// TreeStore::save_to/load_from/cache_path_for/is_cache_valid.
package cache

import (
	"encoding/gob"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/internal/raptor/store"
)

// DefaultTTL is how long a cache snapshot stays valid after creation,
// matching the original's 24-hour window.
const DefaultTTL = 24 * time.Hour

// PathFor returns the cache file path for a project, hashing the
// absolute project path with FNV-1a (the stdlib analogue of the Rust
// original's DefaultHasher - a collision only costs an extra cache
// miss, since the loaded snapshot's ProjectPath is re-validated before
// use, never trusted on filename match alone).
func PathFor(cacheDir, projectPath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(projectPath))
	return filepath.Join(cacheDir, "raptor_"+hexUint64(h.Sum64())+".bin")
}

func hexUint64(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf)
}

// IsValid reports whether a loaded store's snapshot metadata matches
// projectPath, was created within ttl, and was produced by the same
// embedding model/dimension the caller expects. A model mismatch is
// treated the same as corruption: embeddings computed under a different
// model are not comparable, and silently reusing them would return
// nonsense similarity scores.
func IsValid(s *store.Store, projectPath string, ttl time.Duration, expectModel string, expectDim int) bool {
	path, createdAt := s.ProjectMetadata()
	if path != projectPath {
		return false
	}
	if time.Since(time.Unix(createdAt, 0)) >= ttl {
		return false
	}
	name, dim := s.ModelIdentity()
	return name == expectModel && dim == expectDim
}

// Save writes s's snapshot to path atomically (temp file + rename),
// guarded by a cross-process advisory lock so a concurrent index() in
// another process cannot interleave writes.
func Save(s *store.Store, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "create cache directory", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "acquire cache lock", err)
	}
	defer lock.Unlock()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "create temp cache file", err)
	}

	enc := gob.NewEncoder(f)
	if err := enc.Encode(s.ToSnapshot()); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "encode cache snapshot", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "close temp cache file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "rename cache file into place", err)
	}
	return nil
}

// Load reads a snapshot from path and rebuilds a Store bounded by
// limits. A missing file is not an error: the caller falls back to a
// fresh index. A present-but-corrupt or incompatible-format file is
// reported as ErrCodeRaptorCacheCorrupt so the caller can fall back the
// same way.
func Load(path string, limits memtier.Limits) (*store.Store, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "open cache file", err)
	}
	defer f.Close()

	var snap store.Snapshot
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&snap); err != nil {
		return nil, false, rerrors.NewRaptorError(rerrors.ErrCodeRaptorCacheCorrupt, "decode cache snapshot", err)
	}

	s := store.FromSnapshot(snap, limits)
	return s, true, nil
}
