package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"

	_ "modernc.org/sqlite"

	"github.com/cognicore/koch/pkg/koch/store"
)

// sqliteStore implements store.Backend on a single ordered table
type sqliteStore struct {
	db      *sql.DB
	release func()
}

// Open opens a SQLite database file with WAL mode enabled.
// It implements store.Opener.
func Open(ctx context.Context, opts store.Options) (store.Backend, error) {
	if opts.Path == "" {
		return nil, store.OpenError("sqlite", "path is required", nil)
	}

	info, err := os.Stat(opts.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !opts.CreateIfMissing {
			return nil, store.OpenError(opts.Path, "does not exist", nil)
		}
	case err != nil:
		return nil, store.OpenError(opts.Path, "invalid location", err)
	case info.IsDir():
		return nil, store.OpenError(opts.Path, "is a directory", nil)
	case opts.ErrorIfExists && info.Size() > 0:
		return nil, store.OpenError(opts.Path, "already exists", nil)
	}

	release, err := store.Claim(opts.Path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		release()
		return nil, store.OpenError(opts.Path, "open sqlite", err)
	}

	// Enable WAL mode so scans and batch commits don't block each other
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		release()
		return nil, store.OpenError(opts.Path, "enable wal", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		release()
		return nil, store.OpenError(opts.Path, "init schema", err)
	}

	return &sqliteStore{db: db, release: release}, nil
}

// initSchema creates the records table if it doesn't exist.
// BLOB keys compare with memcmp, which gives byte order on scan.
func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS records (
	key BLOB PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID;
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Commit upserts the batch inside one transaction
func (s *sqliteStore) Commit(ctx context.Context, entries []store.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO records (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM records ORDER BY key`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	defer s.release()
	return s.db.Close()
}
