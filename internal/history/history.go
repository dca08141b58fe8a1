// Package history provides SQLite-based persistence for conversations.
//
// Every session keeps an append-only message log plus one metadata row.
// Timestamps are stored as unix nanoseconds.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/cidion/internal/logger"
)

var (
	// ErrStorage wraps every database failure.
	ErrStorage = errors.New("storage failure")
	// ErrSessionNotFound is returned by operations on a session that does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_conversations_session_ts ON conversations (session_id, timestamp);
CREATE TABLE IF NOT EXISTS session_metadata (
	session_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	last_activity INTEGER NOT NULL,
	title TEXT,
	summary TEXT
);
`

// Store is the conversation store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %w", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, path, err)
	}
	// one writer; transactions never wait on themselves
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", ErrStorage, err)
	}
	logger.L.Info("sqlite history DB initialized", "path", path)

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Append stores one message and creates or touches its session, atomically.
// The session's created_at, title and summary are never overwritten and
// last_activity never moves backwards.
func (s *Store) Append(ctx context.Context, sessionID, role, content string, metadata Metadata) (Message, error) {
	if sessionID == "" {
		return Message{}, errors.New("session id is required")
	}
	if role != RoleUser && role != RoleAssistant {
		return Message{}, fmt.Errorf("invalid role %q", role)
	}

	ts := s.now().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, storageErr("begin append", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (session_id, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?)`,
		sessionID, role, content, ts, metadata)
	if err != nil {
		return Message{}, storageErr("insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, storageErr("insert message", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_metadata (session_id, created_at, last_activity) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET last_activity = MAX(session_metadata.last_activity, excluded.last_activity)`,
		sessionID, ts, ts)
	if err != nil {
		return Message{}, storageErr("upsert session", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, storageErr("commit append", err)
	}

	logger.L.Debug("message stored", "session_id", sessionID, "role", role, "id", id)
	return Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: fromNanos(ts),
		Metadata:  metadata,
	}, nil
}

// History returns the most recent limit messages of a session, oldest first.
// Messages sharing a timestamp keep insertion order.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	var rows []messageRow
	err := sqlscan.Select(ctx, s.db, &rows,
		`SELECT id, session_id, role, content, timestamp, metadata FROM conversations
		WHERE session_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, storageErr("select history", err)
	}

	slices.Reverse(rows)
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.message())
	}
	return out, nil
}

// RecentSessions returns up to limit sessions, most recently active first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		return []Session{}, nil
	}
	var rows []sessionRow
	err := sqlscan.Select(ctx, s.db, &rows,
		`SELECT session_id, created_at, last_activity, title, summary FROM session_metadata
		ORDER BY last_activity DESC, session_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("select sessions", err)
	}
	out := make([]Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.session())
	}
	return out, nil
}

// Session looks up one session.
func (s *Store) Session(ctx context.Context, sessionID string) (Session, error) {
	var row sessionRow
	err := sqlscan.Get(ctx, s.db, &row,
		`SELECT session_id, created_at, last_activity, title, summary FROM session_metadata WHERE session_id = ?`,
		sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, storageErr("select session", err)
	}
	return row.session(), nil
}

// UpdateTitle sets the title of an existing session.
func (s *Store) UpdateTitle(ctx context.Context, sessionID, title string) error {
	return s.updateField(ctx, "title", sessionID, title)
}

// UpdateSummary sets the summary of an existing session.
func (s *Store) UpdateSummary(ctx context.Context, sessionID, summary string) error {
	return s.updateField(ctx, "summary", sessionID, summary)
}

// column is one of a fixed set of names, never user input.
func (s *Store) updateField(ctx context.Context, column, sessionID, value string) error {
	n, err := execCount(ctx, s.db,
		fmt.Sprintf(`UPDATE session_metadata SET %s = ? WHERE session_id = ?`, column),
		value, sessionID)
	if err != nil {
		return storageErr("update "+column, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execCount runs a statement and reports how many rows it touched.
func execCount(ctx context.Context, db execer, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear deletes a session and all of its messages in one transaction.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin clear", err)
	}
	defer tx.Rollback() //nolint:errcheck

	nm, err := execCount(ctx, tx, `DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return storageErr("delete messages", err)
	}
	ns, err := execCount(ctx, tx, `DELETE FROM session_metadata WHERE session_id = ?`, sessionID)
	if err != nil {
		return storageErr("delete session", err)
	}
	if nm == 0 && ns == 0 {
		return ErrSessionNotFound
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit clear", err)
	}
	logger.L.Info("session cleared", "session_id", sessionID, "messages", nm)
	return nil
}

// Stats counts the messages of a session. An unknown session has zero messages.
func (s *Store) Stats(ctx context.Context, sessionID string) (Stats, error) {
	var row statsRow
	err := sqlscan.Get(ctx, s.db, &row,
		`SELECT COUNT(*) AS message_count, MIN(timestamp) AS first_message, MAX(timestamp) AS last_message
		FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return Stats{}, storageErr("select stats", err)
	}
	return row.stats(), nil
}
