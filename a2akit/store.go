package a2akit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	_ "modernc.org/sqlite"
)

var _ a2asrv.TaskStore = (*SQLiteTaskStore)(nil)

const taskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	state TEXT NOT NULL,
	data TEXT NOT NULL,
	updated INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_context ON tasks(context_id);
`

// SQLiteTaskStore persists tasks as JSON documents in SQLite.
type SQLiteTaskStore struct {
	db *sql.DB
}

// NewSQLiteTaskStore opens (or creates) the database at path; ":memory:"
// yields a private in-memory database.
func NewSQLiteTaskStore(path string) (*SQLiteTaskStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(taskSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteTaskStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteTaskStore) Close() error { return s.db.Close() }

// Save upserts task.
func (s *SQLiteTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, context_id, state, data, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET context_id = excluded.context_id, state = excluded.state,
			data = excluded.data, updated = excluded.updated`,
		string(task.ID), task.ContextID, string(task.Status.State), string(b), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}

	return nil
}

// Get loads a task or returns a2a.ErrTaskNotFound.
func (s *SQLiteTaskStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM tasks WHERE id = ?`, string(taskID)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	task := &a2a.Task{}
	if err := json.Unmarshal([]byte(data), task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}

	return task, nil
}

// ListByContext returns the ids of the tasks of contextID, most recently
// updated first.
func (s *SQLiteTaskStore) ListByContext(ctx context.Context, contextID string) ([]a2a.TaskID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks WHERE context_id = ? ORDER BY updated DESC`, contextID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var ids []a2a.TaskID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		ids = append(ids, a2a.TaskID(id))
	}

	return ids, rows.Err()
}

// Delete removes a task or returns a2a.ErrTaskNotFound.
func (s *SQLiteTaskStore) Delete(ctx context.Context, taskID a2a.TaskID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, string(taskID))
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, taskID)
	}

	return nil
}
