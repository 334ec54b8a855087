// Package store provides the SQLite record store for audios, downloads and
// the persisted session queue.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

// Errors
var (
	ErrNotFound = errors.New("record not found")
)

// Store is the SQLite record store.
type Store struct {
	db *sql.DB
}

// Open opens (and creates) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory: %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	zlog.Debug().Msgf("store: opened database: path=%s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a transaction. It rolls back when fn fails and
// commits otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audios (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			cover_url TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			explicit INTEGER NOT NULL DEFAULT 0,
			added_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audios_added_at ON audios(added_at);

		CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			cover_url TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			explicit INTEGER NOT NULL DEFAULT 0,
			file_path TEXT NOT NULL,
			status TEXT NOT NULL,
			added_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS queue_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			title TEXT NOT NULL DEFAULT '',
			current_index INTEGER NOT NULL DEFAULT -1,
			position_ms INTEGER NOT NULL DEFAULT 0,
			repeat_mode TEXT NOT NULL DEFAULT 'none',
			shuffle_mode TEXT NOT NULL DEFAULT 'none',
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS queue_items (
			position INTEGER PRIMARY KEY,
			audio_id TEXT NOT NULL
		);
	`)
	return err
}
