package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"todosync/internal/service"
)

// SQLiteFile is the database filename used by the sqlite driver.
const SQLiteFile = "local.sqlite"

// SQLite keeps the snapshot as one row of a key/value table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and initializes) the snapshot database under dir.
func OpenSQLite(ctx context.Context, dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create local store directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, SQLiteFile))
	if err != nil {
		return nil, err
	}

	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS kv (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize local store: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load implements service.LocalStore.
func (s *SQLite) Load(ctx context.Context) ([]service.Task, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, service.LocalSnapshotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []service.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load local snapshot: %w", err)
	}

	tasks := []service.Task{}
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode local snapshot: %w", err)
	}
	return tasks, nil
}

// Save implements service.LocalStore.
func (s *SQLite) Save(ctx context.Context, tasks []service.Task) error {
	if tasks == nil {
		tasks = []service.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (k, v) VALUES (?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		service.LocalSnapshotKey, string(data))
	if err != nil {
		return fmt.Errorf("failed to save local snapshot: %w", err)
	}
	return nil
}
