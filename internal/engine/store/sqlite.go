package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores entries in a single-table database inside the workspace.
// Every insert is committed immediately.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: sqlite mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS entries (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: sqlite get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Upsert(ctx context.Context, key string, fill FillFunc) ([]byte, bool, error) {
	if v, ok, err := s.get(ctx, key); err != nil || ok {
		return v, false, err
	}
	v, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (key, value, created_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		key, v, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, false, fmt.Errorf("store: sqlite insert %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Another writer got there first; its value wins.
		stored, _, err := s.get(ctx, key)
		return stored, false, err
	}
	return v, true, nil
}

func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: sqlite count: %w", err)
	}
	return n, nil
}

func (s *SQLite) Flush(context.Context) error { return nil }

func (s *SQLite) Close() error { return s.db.Close() }
