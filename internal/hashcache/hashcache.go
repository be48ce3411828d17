// Package hashcache keeps a persistent index of file content hashes so that
// re-runs over large photo trees do not re-read unchanged files.
package hashcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"movephotos/internal/comparer"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_hashes (
	path     TEXT PRIMARY KEY,
	size     INTEGER NOT NULL,
	mtime_ns INTEGER NOT NULL,
	hash     TEXT NOT NULL
);
`

// Cache is a comparer.Hasher backed by a SQLite index keyed on path, size and
// modification time. A changed size or mtime forces a re-hash, but a rewrite
// that keeps both is not noticed: decisions that delete or replace files must
// hash through Underlying.
type Cache struct {
	db     *sql.DB
	hasher comparer.Hasher
}

// Open opens or creates the index at dbPath. A nil hasher means
// comparer.SHA256Hasher.
func Open(dbPath string, hasher comparer.Hasher) (*Cache, error) {
	if hasher == nil {
		hasher = comparer.SHA256Hasher{}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create hash cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash cache: %w", err)
	}
	// Hashing fans out across goroutines; a single connection serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize hash cache: %w", err)
	}

	return &Cache{db: db, hasher: hasher}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Underlying returns the wrapped hasher, which always reads the file.
func (c *Cache) Underlying() comparer.Hasher {
	return c.hasher
}

// Hash returns the content hash of path, reusing the stored value when the
// file's size and modification time are unchanged.
func (c *Cache) Hash(ctx context.Context, path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	size := info.Size()
	mtime := info.ModTime().UnixNano()

	var hash string
	err = c.db.QueryRowContext(ctx,
		`SELECT hash FROM file_hashes WHERE path = ? AND size = ? AND mtime_ns = ?`,
		absPath, size, mtime,
	).Scan(&hash)
	switch {
	case err == nil:
		return hash, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to query hash cache: %w", err)
	}

	hash, err = c.hasher.Hash(ctx, absPath)
	if err != nil {
		return "", err
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO file_hashes (path, size, mtime_ns, hash) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime_ns = excluded.mtime_ns, hash = excluded.hash`,
		absPath, size, mtime, hash,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update hash cache: %w", err)
	}

	return hash, nil
}

// Forget drops the entry for path, e.g. after the file was moved or deleted.
func (c *Cache) Forget(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM file_hashes WHERE path = ?`, absPath); err != nil {
		return fmt.Errorf("failed to update hash cache: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_hashes`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
