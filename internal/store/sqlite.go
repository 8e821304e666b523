package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"

	"github.com/cenkalti/backoff/v4"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps goals and the event log in one SQLite file.
// It implements goals.RecordStore and goals.Transactor.
type SQLiteStore struct {
	db   *sql.DB
	path string
	goalTable

	// retryWindow bounds how long InTx keeps retrying a busy database.
	retryWindow time.Duration
}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// busyTimeout is how long SQLite itself waits on a locked database before InTx sees SQLITE_BUSY.
var busyTimeout = 5 * time.Second

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	// modernc.org/sqlite driver name is "sqlite". Write transactions take the lock up front.
	db, err := sql.Open("sqlite", path+"?_txlock=immediate")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &SQLiteStore{
		db:          db,
		path:        path,
		goalTable:   goalTable{q: db},
		retryWindow: 15 * time.Second,
	}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS goals (
			priority INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			payload_json TEXT NOT NULL,
			issued_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_issued ON events(issued_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// InTx runs fn inside one SQLite transaction. A busy database is retried with exponential
// backoff; any other error rolls back and is returned as is.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(goals.RecordStore) error) error {
	op := func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return retryable(err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(goalTable{q: tx}); err != nil {
			return retryable(err)
		}
		return retryable(tx.Commit())
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = s.retryWindow
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// retryable marks everything except a busy database as permanent.
func retryable(err error) error {
	if err == nil || isBusy(err) {
		return err
	}
	return backoff.Permanent(err)
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		primary := se.Code() & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}
	return false
}

func isDuplicateKey(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// goalTable runs the goal queries against either the database or an open transaction.
type goalTable struct {
	q querier
}

func (t goalTable) GetAll(ctx context.Context) ([]model.Goal, error) {
	return t.query(ctx, `SELECT priority, text FROM goals ORDER BY priority ASC`)
}

func (t goalTable) FindByPriority(ctx context.Context, priority int) ([]model.Goal, error) {
	return t.query(ctx, `SELECT priority, text FROM goals WHERE priority = ?`, priority)
}

func (t goalTable) query(ctx context.Context, q string, args ...any) ([]model.Goal, error) {
	rows, err := t.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Goal{}
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.Priority, &g.Text); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t goalTable) Insert(ctx context.Context, goal model.Goal) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO goals(priority, text, updated_at_unixms) VALUES(?, ?, ?)`,
		goal.Priority, goal.Text, time.Now().UnixMilli(),
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("insert priority %d: %w", goal.Priority, goals.ErrDuplicateKey)
	}
	return err
}

func (t goalTable) DeleteByMatch(ctx context.Context, goal model.Goal) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM goals WHERE priority = ? AND text = ?`, goal.Priority, goal.Text)
	return err
}

func (t goalTable) DeleteAll(ctx context.Context) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM goals`)
	return err
}

func (t goalTable) UpdateTextAndPriority(ctx context.Context, oldPriority int, text string, newPriority int) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE goals SET text = ?, priority = ?, updated_at_unixms = ? WHERE priority = ?`,
		text, newPriority, time.Now().UnixMilli(), oldPriority,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("update priority %d to %d: %w", oldPriority, newPriority, goals.ErrDuplicateKey)
	}
	return err
}
