package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/a2amesh/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	app_name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	state TEXT NOT NULL,
	created INTEGER NOT NULL,
	updated INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(app_name, user_id);
CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
`

// SQLiteStore is a durable SessionStore. Sessions live in the sessions table
// with their state JSON encoded; events are appended to the events table in
// emission order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. The special path
// ":memory:" yields a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;" + sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a new session; an existing id is returned unchanged.
func (s *SQLiteStore) Create(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	if sessionID == "" {
		sessionID = core.NewID()
	}

	sess := core.NewSession(appName, userID, sessionID)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, app_name, user_id, state, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, appName, userID, "{}", sess.Created.UnixNano(), sess.Updated.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.Get(ctx, sessionID)
}

// Get loads the session and its full event history.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, app_name, user_id, state, created, updated FROM sessions WHERE id = ?`, sessionID)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, err
	}

	events, err := s.loadEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.Events = events

	return sess, nil
}

// List returns the sessions owned by (appName, userID), oldest first.
func (s *SQLiteStore) List(ctx context.Context, appName, userID string) ([]*core.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, app_name, user_id, state, created, updated FROM sessions WHERE app_name = ? AND user_id = ? ORDER BY created`,
		appName, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*core.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range out {
		if sess.Events, err = s.loadEvents(ctx, sess.ID); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Delete removes the session and its events.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	return nil
}

// AppendEvent appends a JSON encoded event to the session history.
func (s *SQLiteStore) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated = ? WHERE id = ?`, time.Now().UTC().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO events (session_id, data) VALUES (?, ?)`, sessionID, string(data)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return tx.Commit()
}

// ApplyDelta merges delta into the stored state within a transaction.
func (s *SQLiteStore) ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return err
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	maps.Copy(state, delta)

	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET state = ?, updated = ? WHERE id = ?`,
		string(encoded), time.Now().UTC().UnixNano(), sessionID); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) loadEvents(ctx context.Context, sessionID string) ([]core.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	events := make([]core.Event, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var ev core.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.Session, error) {
	var (
		id, app, user, raw string
		created, updated   int64
	)

	if err := row.Scan(&id, &app, &user, &raw, &created, &updated); err != nil {
		return nil, err
	}

	sess := core.NewSession(app, user, id)
	if err := json.Unmarshal([]byte(raw), &sess.State); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	sess.Created = time.Unix(0, created).UTC()
	sess.Updated = time.Unix(0, updated).UTC()

	return sess, nil
}
