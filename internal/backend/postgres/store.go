// Package postgres implements service.RemoteStore directly on a PostgreSQL
// table with the same shape as the hosted one:
//
//	id         uuid or bigint primary key with a server default
//	text       text not null
//	completed  boolean not null default false
//	created_at timestamptz not null default now()
//	user_id    uuid or text, null for anonymous rows
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"todosync/internal/service"
)

const (
	// APITimeout is the timeout for each statement.
	APITimeout = 5 * time.Second

	// DefaultTable is the table holding the tasks.
	DefaultTable = "todos"
)

// Store is a RemoteStore backed by database/sql and lib/pq.
type Store struct {
	db    *sql.DB
	table string
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, wrapError(err)
	}
	return New(db, table), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: pq.QuoteIdentifier(table)}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ownerClause returns the owner predicate and its arguments, numbering
// placeholders from next.
func ownerClause(owner string, next int) (string, []any) {
	if owner == "" {
		return "user_id IS NULL", nil
	}
	return fmt.Sprintf("user_id::text = $%d", next), []any{owner}
}

// ListTasks returns the owner's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, owner string) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	where, args := ownerClause(owner, 1)
	query := fmt.Sprintf(
		`SELECT id::text, text, completed, created_at, COALESCE(user_id::text, '') FROM %s WHERE %s ORDER BY created_at DESC`,
		s.table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	tasks := []service.Task{}
	for rows.Next() {
		var t service.Task
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed, &t.CreatedAt, &t.UserID); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if t.UserID != owner {
			return nil, fmt.Errorf("task %s belongs to another owner", t.ID)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return tasks, nil
}

// InsertTask inserts text, completed and owner and returns the stored row.
func (s *Store) InsertTask(ctx context.Context, owner string, task service.Task) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	query := fmt.Sprintf(
		`INSERT INTO %s (text, completed, user_id) VALUES ($1, $2, $3)
		 RETURNING id::text, text, completed, created_at, COALESCE(user_id::text, '')`,
		s.table)

	var ownerArg any
	if owner != "" {
		ownerArg = owner
	}

	var saved service.Task
	err := s.db.QueryRowContext(ctx, query, task.Text, task.Completed, ownerArg).
		Scan(&saved.ID, &saved.Text, &saved.Completed, &saved.CreatedAt, &saved.UserID)
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return saved, nil
}

// UpdateTask patches the row matching id and owner. No match affects nothing.
func (s *Store) UpdateTask(ctx context.Context, owner, id string, patch service.Patch) error {
	if patch.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var sets []string
	var args []any
	if patch.Text != nil {
		args = append(args, *patch.Text)
		sets = append(sets, fmt.Sprintf("text = $%d", len(args)))
	}
	if patch.Completed != nil {
		args = append(args, *patch.Completed)
		sets = append(sets, fmt.Sprintf("completed = $%d", len(args)))
	}
	args = append(args, id)
	idArg := len(args)

	where, ownerArgs := ownerClause(owner, idArg+1)
	args = append(args, ownerArgs...)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id::text = $%d AND %s`,
		s.table, strings.Join(sets, ", "), idArg, where)
	return s.exec(ctx, query, args...)
}

// DeleteTask deletes the row matching id and owner.
func (s *Store) DeleteTask(ctx context.Context, owner, id string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	where, args := ownerClause(owner, 2)
	query := fmt.Sprintf(`DELETE FROM %s WHERE id::text = $1 AND %s`, s.table, where)
	return s.exec(ctx, query, append([]any{id}, args...)...)
}

// DeleteCompleted deletes every completed row of the owner.
func (s *Store) DeleteCompleted(ctx context.Context, owner string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	where, args := ownerClause(owner, 1)
	query := fmt.Sprintf(`DELETE FROM %s WHERE completed AND %s`, s.table, where)
	return s.exec(ctx, query, args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapError(err)
	}
	return nil
}

// wrapError wraps driver errors with user-friendly messages.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "undefined_table":
			return fmt.Errorf("tasks table does not exist: %w", err)
		case "insufficient_privilege":
			return fmt.Errorf("not allowed to access tasks table: %w", err)
		case "invalid_password", "invalid_authorization_specification":
			return fmt.Errorf("database login failed: %w", err)
		}
	}
	return err
}

var _ service.RemoteStore = (*Store)(nil)
