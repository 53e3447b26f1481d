// Package storage defines the persistence port for design sessions and
// the errors shared by its adapters.
package storage

import (
	"context"
	"errors"

	"github.com/infrasketch/sketchd/pkg/session"
)

// ErrNotFound is returned when a session does not exist. Adapters wrap it
// with fmt.Errorf("%w", ...) so callers can test with errors.Is.
var ErrNotFound = errors.New("session not found")

// Store persists design sessions.
//
// CreateSession stamps the session timestamps and starts it with an empty
// transcript; messages are appended only through AddMessage, which also
// bumps the session's updated_at. UpdateSession replaces every mutable
// session field except the transcript. ListSessions orders by last update,
// newest first.
type Store interface {
	CreateSession(ctx context.Context, sess *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	UpdateSession(ctx context.Context, sess *session.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]session.Summary, error)
	AddMessage(ctx context.Context, sessionID string, msg session.Message) error
	Close() error
}
