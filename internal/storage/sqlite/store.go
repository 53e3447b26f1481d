// Package sqlite persists sessions in a local SQLite database. It is the
// default durable backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and prepares the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_generated INTEGER NOT NULL DEFAULT 0,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			generation_error TEXT NOT NULL DEFAULT '',
			duration_seconds REAL NOT NULL DEFAULT 0,
			diagram TEXT,
			design_doc TEXT NOT NULL DEFAULT '',
			design_doc_status TEXT NOT NULL DEFAULT 'none',
			design_doc_error TEXT NOT NULL DEFAULT '',
			design_doc_duration REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	now := time.Now().UTC()

	diagramJSON, err := json.Marshal(sess.Diagram)
	if err != nil {
		return fmt.Errorf("failed to marshal diagram: %w", err)
	}

	query := `INSERT INTO sessions (id, name, name_generated, model, status, generation_error,
	          duration_seconds, diagram, design_doc, design_doc_status, design_doc_error,
	          design_doc_duration, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		sess.ID, sess.Name, sess.NameGenerated, sess.Model, string(sess.Status),
		sess.GenerationError, sess.DurationSeconds, string(diagramJSON),
		sess.DesignDoc, string(sess.DesignDocStatus), sess.DesignDocError,
		sess.DesignDocDuration, now, now)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	query := `SELECT id, name, name_generated, model, status, generation_error,
	          duration_seconds, diagram, design_doc, design_doc_status, design_doc_error,
	          design_doc_duration, created_at, updated_at
	          FROM sessions WHERE id = ?`

	var sess session.Session
	var diagramJSON sql.NullString
	var status, docStatus string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.Name, &sess.NameGenerated, &sess.Model, &status,
		&sess.GenerationError, &sess.DurationSeconds, &diagramJSON,
		&sess.DesignDoc, &docStatus, &sess.DesignDocError,
		&sess.DesignDocDuration, &sess.CreatedAt, &sess.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Status = session.Status(status)
	sess.DesignDocStatus = session.DesignDocStatus(docStatus)

	if diagramJSON.Valid && diagramJSON.String != "" {
		var d *diagram.Diagram
		if err := json.Unmarshal([]byte(diagramJSON.String), &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagram: %w", err)
		}
		sess.Diagram = d
	}

	messages, err := s.getMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Messages = messages

	return &sess, nil
}

func (s *Store) getMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	query := `SELECT id, role, content, created_at
	          FROM messages WHERE session_id = ?
	          ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []session.Message{}
	for rows.Next() {
		var msg session.Message
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = session.Role(role)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *Store) UpdateSession(ctx context.Context, sess *session.Session) error {
	diagramJSON, err := json.Marshal(sess.Diagram)
	if err != nil {
		return fmt.Errorf("failed to marshal diagram: %w", err)
	}

	query := `UPDATE sessions SET name = ?, name_generated = ?, model = ?, status = ?,
	          generation_error = ?, duration_seconds = ?, diagram = ?, design_doc = ?,
	          design_doc_status = ?, design_doc_error = ?, design_doc_duration = ?,
	          updated_at = ?
	          WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		sess.Name, sess.NameGenerated, sess.Model, string(sess.Status),
		sess.GenerationError, sess.DurationSeconds, string(diagramJSON),
		sess.DesignDoc, string(sess.DesignDocStatus), sess.DesignDocError,
		sess.DesignDocDuration, time.Now().UTC(), sess.ID)

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, storage.ErrNotFound)
	}

	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The cascade clause is inert without the foreign_keys pragma, so the
	// transcript is removed explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}

	return tx.Commit()
}

func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	query := `SELECT id, name, created_at, updated_at, model,
	          COALESCE(json_array_length(diagram, '$.nodes'), 0),
	          COALESCE(json_array_length(diagram, '$.edges'), 0),
	          design_doc_status = 'completed' AND design_doc != ''
	          FROM sessions
	          ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []session.Summary{}
	for rows.Next() {
		var sum session.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.CreatedAt, &sum.UpdatedAt,
			&sum.Model, &sum.NodeCount, &sum.EdgeCount, &sum.HasDesignDoc); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

func (s *Store) AddMessage(ctx context.Context, sessionID string, msg session.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Bumping updated_at doubles as the existence check.
	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}

	query := `INSERT INTO messages (id, session_id, role, content, created_at)
	          VALUES (?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, query,
		msg.ID, sessionID, string(msg.Role), msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
