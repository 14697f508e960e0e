// Package audit persists conversation threads, their messages, and a
// record of every action execution. Records are append-only and keyed
// by UUIDv7 so ids sort by creation time.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a thread does not exist.
var ErrNotFound = errors.New("not found")

// Execution statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Thread is a conversation.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one turn of a thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Execution records one action execution.
type Execution struct {
	ID          string          `json:"id"`
	ThreadID    string          `json:"threadId,omitempty"`
	Action      string          `json:"action"`
	Args        json.RawMessage `json:"args,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Status      string          `json:"status"`
	ExecutionMS int64           `json:"executionTimeMs"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Summary counts executions by status.
type Summary struct {
	Total  int `json:"total"`
	OK     int `json:"ok"`
	Errors int `json:"errors"`
}

// Store is an append-only SQLite audit store. All public methods are
// safe for concurrent use (SQLite serializes writes).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates an audit store at the given database path. The
// schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL REFERENCES threads(id),
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS executions (
		id           TEXT PRIMARY KEY,
		thread_id    TEXT,
		action       TEXT NOT NULL,
		args         TEXT,
		result       TEXT,
		status       TEXT NOT NULL,
		execution_ms INTEGER NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
	CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at);
	CREATE INDEX IF NOT EXISTS idx_executions_thread ON executions(thread_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// timeLayout is fixed width so stored timestamps compare correctly as
// text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

// CreateThread starts a new thread.
func (s *Store) CreateThread(ctx context.Context, title string) (*Thread, error) {
	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("generate thread ID: %w", err)
	}
	ts := s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, title, created_at) VALUES (?, ?, ?)`,
		id, title, ts,
	); err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return &Thread{ID: id, Title: title, CreatedAt: parseTime(ts)}, nil
}

// Thread returns a thread by id, or ErrNotFound.
func (s *Store) Thread(ctx context.Context, id string) (*Thread, error) {
	var (
		t  Thread
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM threads WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	t.CreatedAt = parseTime(ts)
	return &t, nil
}

// AddMessage appends a message to a thread.
func (s *Store) AddMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("generate message ID: %w", err)
	}
	ts := s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, threadID, role, content, ts,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &Message{ID: id, ThreadID: threadID, Role: role, Content: content, CreatedAt: parseTime(ts)}, nil
}

// History returns the last limit messages of a thread, oldest first.
func (s *Store) History(ctx context.Context, threadID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, created_at FROM (
			SELECT * FROM messages WHERE thread_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		threadID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m  Message
			ts string
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordExecution persists an execution. If rec.ID is empty, a UUIDv7
// is generated.
func (s *Store) RecordExecution(ctx context.Context, rec Execution) (string, error) {
	if rec.ID == "" {
		id, err := newID()
		if err != nil {
			return "", fmt.Errorf("generate execution ID: %w", err)
		}
		rec.ID = id
	}
	if rec.Status == "" {
		rec.Status = StatusOK
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions
			(id, thread_id, action, args, result, status, execution_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullable(rec.ThreadID),
		rec.Action,
		nullableJSON(rec.Args),
		nullableJSON(rec.Result),
		rec.Status,
		rec.ExecutionMS,
		s.timestamp(),
	)
	if err != nil {
		return "", fmt.Errorf("insert execution: %w", err)
	}
	return rec.ID, nil
}

// Executions returns the most recent executions, newest first. A
// non-empty threadID restricts the listing to that thread.
func (s *Store) Executions(ctx context.Context, threadID string, limit int) ([]Execution, error) {
	query := `SELECT id, COALESCE(thread_id, ''), action, COALESCE(args, ''), COALESCE(result, ''),
			status, execution_ms, created_at
		 FROM executions`
	args := []any{}
	if threadID != "" {
		query += ` WHERE thread_id = ?`
		args = append(args, threadID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var (
			e           Execution
			argStr, res string
			ts          string
		)
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Action, &argStr, &res, &e.Status, &e.ExecutionMS, &ts); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if argStr != "" {
			e.Args = json.RawMessage(argStr)
		}
		if res != "" {
			e.Result = json.RawMessage(res)
		}
		e.CreatedAt = parseTime(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary counts executions within [start, end).
func (s *Store) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0)
		 FROM executions
		 WHERE created_at >= ? AND created_at < ?`,
		start.UTC().Format(timeLayout),
		end.UTC().Format(timeLayout),
	)
	var sum Summary
	if err := row.Scan(&sum.Total, &sum.OK, &sum.Errors); err != nil {
		return nil, fmt.Errorf("query execution summary: %w", err)
	}
	return &sum, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
