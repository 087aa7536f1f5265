package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scicontent/pkg/logx"
)

// DefaultAppName labels sessions created by this application.
const DefaultAppName = "scientific_content_agent"

// Store persists sessions and their transcripts in SQLite.
// Writes to one session id are serialized; different sessions do not contend.
type Store struct {
	db      *sql.DB
	appName string
	logger  *logx.Logger
	now     func() time.Time
	locks   sync.Map // session id -> *sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithAppName sets the app name recorded on new sessions.
func WithAppName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.appName = name
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *logx.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the session database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(ctx, path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		appName: DefaultAppName,
		logger:  logx.NewLogger("sessions"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug("📦 Session store opened: %s", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *Store) lock(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// forget drops the lock of a session that no longer exists. Callers hold that lock.
func (s *Store) forget(id string) {
	s.locks.Delete(id)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Create starts a new session with a generated id.
func (s *Store) Create(ctx context.Context, userID string) (string, error) {
	id := uuid.New().String()
	if err := s.CreateWithID(ctx, id, userID); err != nil {
		return "", err
	}
	return id, nil
}

// CreateWithID starts a new session with a caller-supplied id.
// It fails when the id already exists.
func (s *Store) CreateWithID(ctx context.Context, id, userID string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id must not be empty")
	}
	unlock := s.lock(id)
	defer unlock()

	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, app_name, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.appName, userID, SessionStatusActive, now, now)
	if err != nil {
		if exists, existsErr := s.Exists(ctx, id); existsErr == nil && exists {
			return fmt.Errorf("session %s already exists", id)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Debug("Created session %s for user %s", id, userID)
	return nil
}

// Exists reports whether a session id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return true, nil
}

// Append adds one transcript entry and bumps the session's updated_at.
// A zero Timestamp is filled in with the current time.
func (s *Store) Append(ctx context.Context, id string, msg Message) error {
	unlock := s.lock(id)
	defer unlock()

	now := s.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		s.forget(id)
		return notFound(id)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, stage, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, msg.Role, msg.Stage, msg.Content, formatTime(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// SaveResult records a run's topic, status and terminal state snapshot.
// state is serialized with encoding/json, so ordered types keep their order.
func (s *Store) SaveResult(ctx context.Context, id, topic, status string, state any) error {
	unlock := s.lock(id)
	defer unlock()

	stateJSON := ""
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}
		stateJSON = string(data)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET topic = ?, status = ?, state_json = ?, updated_at = ?
		WHERE id = ?`,
		topic, status, stateJSON, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		s.forget(id)
		return notFound(id)
	}
	return nil
}

// Get returns the session header, its ordered transcript and state snapshot.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sess                 Session
		stateJSON            string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, app_name, user_id, topic, status, state_json, created_at, updated_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.AppName, &sess.UserID, &sess.Topic, &sess.Status, &stateJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for session %s: %w", id, err)
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at for session %s: %w", id, err)
	}
	if stateJSON != "" {
		sess.State = json.RawMessage(stateJSON)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, stage, content, created_at FROM messages
		WHERE session_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sess.Messages = []Message{}
	for rows.Next() {
		var msg Message
		var ts string
		if err := rows.Scan(&msg.Role, &msg.Stage, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if msg.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("invalid message timestamp: %w", err)
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return &sess, nil
}

// List returns every session, most recently updated first, ties broken by id.
func (s *Store) List(ctx context.Context) ([]*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.topic, s.status, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s
		ORDER BY s.updated_at DESC, s.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []*Summary{}
	for rows.Next() {
		var sum Summary
		var createdAt, updatedAt string
		if err := rows.Scan(&sum.ID, &sum.UserID, &sum.Topic, &sum.Status, &createdAt, &updatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if sum.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at for session %s: %w", sum.ID, err)
		}
		if sum.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid updated_at for session %s: %w", sum.ID, err)
		}
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return summaries, nil
}

// Delete removes a session and its transcript in one transaction.
// Deleting an unknown (or already deleted) id returns ErrSessionNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		s.forget(id)
		return notFound(id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	s.forget(id)
	s.logger.Debug("Deleted session %s", id)
	return nil
}
