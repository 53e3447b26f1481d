// Package events publishes session lifecycle notifications for decoupled
// consumers. The direct publisher serves single-process deployments; the
// nats publisher fans events out across processes.
package events

import (
	"context"
	"time"
)

// Type identifies a lifecycle event.
type Type string

const (
	TypeSessionCreated      Type = "session.created"
	TypeSessionDeleted      Type = "session.deleted"
	TypeDiagramUpdated      Type = "diagram.updated"
	TypeGenerationCompleted Type = "generation.completed"
	TypeGenerationFailed    Type = "generation.failed"
	TypeDesignDocCompleted  Type = "design_doc.completed"
	TypeDesignDocFailed     Type = "design_doc.failed"
)

// Event is one lifecycle notification. Detail carries event-specific
// fields: the mutation operation and resulting version for diagram
// updates, duration for completions, the error message for failures.
type Event struct {
	Type      Type           `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// New builds an event stamped with the current UTC time.
func New(t Type, sessionID string, detail map[string]any) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
}

// Publisher delivers lifecycle events. Delivery is best effort: callers
// log a failed publish and carry on with the operation that caused it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
