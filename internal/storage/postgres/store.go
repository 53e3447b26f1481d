// Package postgres persists sessions in PostgreSQL via pgx. Use it when
// several sketchd replicas share one database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    name_generated      BOOLEAN NOT NULL DEFAULT FALSE,
    model               TEXT NOT NULL,
    status              TEXT NOT NULL,
    generation_error    TEXT NOT NULL DEFAULT '',
    duration_seconds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    diagram             JSONB,
    design_doc          TEXT NOT NULL DEFAULT '',
    design_doc_status   TEXT NOT NULL DEFAULT 'none',
    design_doc_error    TEXT NOT NULL DEFAULT '',
    design_doc_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    seq        BIGSERIAL PRIMARY KEY,
    id         TEXT NOT NULL UNIQUE,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);
`

// Store is a PostgreSQL implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New connects to the database at dsn and prepares the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &Store{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
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
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = s.pool.Exec(ctx, query,
		sess.ID, sess.Name, sess.NameGenerated, sess.Model, string(sess.Status),
		sess.GenerationError, sess.DurationSeconds, diagramJSON,
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
	          FROM sessions WHERE id = $1`

	var sess session.Session
	var diagramJSON []byte
	var status, docStatus string

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.Name, &sess.NameGenerated, &sess.Model, &status,
		&sess.GenerationError, &sess.DurationSeconds, &diagramJSON,
		&sess.DesignDoc, &docStatus, &sess.DesignDocError,
		&sess.DesignDocDuration, &sess.CreatedAt, &sess.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Status = session.Status(status)
	sess.DesignDocStatus = session.DesignDocStatus(docStatus)

	if len(diagramJSON) > 0 {
		var d *diagram.Diagram
		if err := json.Unmarshal(diagramJSON, &d); err != nil {
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
	          FROM messages WHERE session_id = $1
	          ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, sessionID)
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

	query := `UPDATE sessions SET name = $1, name_generated = $2, model = $3, status = $4,
	          generation_error = $5, duration_seconds = $6, diagram = $7, design_doc = $8,
	          design_doc_status = $9, design_doc_error = $10, design_doc_duration = $11,
	          updated_at = $12
	          WHERE id = $13`

	ct, err := s.pool.Exec(ctx, query,
		sess.Name, sess.NameGenerated, sess.Model, string(sess.Status),
		sess.GenerationError, sess.DurationSeconds, diagramJSON,
		sess.DesignDoc, string(sess.DesignDocStatus), sess.DesignDocError,
		sess.DesignDocDuration, time.Now().UTC(), sess.ID)

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, storage.ErrNotFound)
	}

	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	// Messages go with the session through the ON DELETE CASCADE reference.
	ct, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}

	return nil
}

func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	query := `SELECT id, name, created_at, updated_at, model,
	          COALESCE(jsonb_array_length(diagram->'nodes'), 0),
	          COALESCE(jsonb_array_length(diagram->'edges'), 0),
	          (design_doc_status = 'completed' AND design_doc <> '')
	          FROM sessions
	          ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}

	query := `INSERT INTO messages (id, session_id, role, content, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, query,
		msg.ID, sessionID, string(msg.Role), msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
