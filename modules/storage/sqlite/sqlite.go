// Package sqlite implements the durable blob backend over a local SQLite
// database, for single-box deployments. It uses modernc.org/sqlite
// (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/curatorbot/curator/internal/persist"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeoutMS = 5000

// Compile-time interface guard.
var _ persist.Backend = (*Backend)(nil)

// Backend stores blobs in a single key/data table with whole-value
// replace semantics.
type Backend struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. The caller owns the returned Backend and must Close it.
func Open(path string) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit the pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeoutMS)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blobs (
			key        TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Backend{db: db}, nil
}

// Load implements persist.Backend.
func (b *Backend) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", key, err)
	}
	return data, nil
}

// Save implements persist.Backend.
func (b *Backend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO blobs (key, data, updated_at)
		VALUES (?, ?, ?)`,
		key, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}
