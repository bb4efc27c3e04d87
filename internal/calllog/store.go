package calllog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists terminal command entries so ad hoc commands stay
// auditable after the session is gone.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenStore creates or opens the audit database at path.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS call_log (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		kind TEXT NOT NULL,
		url TEXT,
		selector TEXT,
		error TEXT,
		messages_json TEXT,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_call_log_session ON call_log(session_id);
	CREATE INDEX IF NOT EXISTS idx_call_log_created ON call_log(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a terminal entry. Re-recording the same id overwrites it.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if !e.Status.Terminal() {
		return fmt.Errorf("entry %s is not terminal: %s", e.ID, e.Status)
	}
	messages, err := json.Marshal(e.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	var durationMS int64
	if e.Duration != nil {
		durationMS = e.Duration.Milliseconds()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO call_log
			(id, session_id, title, status, kind, url, selector, error, messages_json, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Title, string(e.Status), string(e.Kind),
		e.Params.URL, e.Params.Selector, e.Error, string(messages), durationMS,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record entry %s: %w", e.ID, err)
	}
	return nil
}

// Query narrows List results.
type Query struct {
	SessionID string
	Status    Status
	Limit     int
}

// List returns stored entries, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	query := `SELECT id, session_id, title, status, kind, url, selector, error, messages_json, duration_ms, created_at
		FROM call_log WHERE 1=1`
	var args []any
	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, string(q.Status))
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                          Entry
			status, kind               string
			url, selector, errMsg, msg sql.NullString
			durationMS                 int64
			createdAt                  time.Time
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Title, &status, &kind, &url, &selector, &errMsg, &msg, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan call log row: %w", err)
		}
		e.Status = Status(status)
		e.Kind = Kind(kind)
		e.Params = Params{URL: url.String, Selector: selector.String}
		e.Error = errMsg.String
		if msg.Valid && msg.String != "" {
			if err := json.Unmarshal([]byte(msg.String), &e.Messages); err != nil {
				return nil, fmt.Errorf("failed to decode messages of %s: %w", e.ID, err)
			}
		}
		d := time.Duration(durationMS) * time.Millisecond
		e.Duration = &d
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
