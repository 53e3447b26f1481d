// Package session defines the session model shared by the sketchd service
// and its clients: the Session and Message types, the wire contracts for
// every API operation, the APIError taxonomy, and the client-side Store.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/infrasketch/sketchd/pkg/diagram"
)

// Status is the diagram generation state of a session.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DesignDocStatus is the design document generation state.
type DesignDocStatus string

const (
	DesignDocNone       DesignDocStatus = "none"
	DesignDocGenerating DesignDocStatus = "generating"
	DesignDocCompleted  DesignDocStatus = "completed"
	DesignDocFailed     DesignDocStatus = "failed"
)

// Role identifies the author of a chat message. System entries are
// client-local UI annotations; the server persists user and assistant
// roles only.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one chat transcript entry. The transcript is append-only;
// nothing edits or removes entries short of a store Reset.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a message with a fresh id and UTC timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        "msg_" + uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Session is the root aggregate: exactly one diagram, an ordered chat
// transcript, and an optional design document. Sessions are created by
// the generation or blank flow and destroyed only by explicit delete.
type Session struct {
	ID            string `json:"session_id"`
	Name          string `json:"name"`
	NameGenerated bool   `json:"name_generated"`
	Model         string `json:"model"`

	Status          Status           `json:"status"`
	GenerationError string           `json:"generation_error,omitempty"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Diagram         *diagram.Diagram `json:"diagram"`

	Messages []Message `json:"messages"`

	DesignDoc         string          `json:"design_doc,omitempty"`
	DesignDocStatus   DesignDocStatus `json:"design_doc_status"`
	DesignDocError    string          `json:"design_doc_error,omitempty"`
	DesignDocDuration float64         `json:"design_doc_duration_seconds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds a session in the generating state with a fresh id and no
// diagram yet. Callers flip Status and attach a diagram as their flow
// completes.
func New(model string) *Session {
	return &Session{
		ID:              "sess_" + uuid.New().String(),
		Name:            "Untitled design",
		Model:           model,
		Status:          StatusGenerating,
		DesignDocStatus: DesignDocNone,
		Messages:        []Message{},
	}
}

// Clone returns a deep copy sharing no diagram, transcript, or metadata
// storage with the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Diagram = s.Diagram.Clone()
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	return &out
}

// HasDesignDoc reports whether a completed design document is available.
func (s *Session) HasDesignDoc() bool {
	return s.DesignDocStatus == DesignDocCompleted && s.DesignDoc != ""
}

// Summary is the listing shape returned by GET /user/sessions.
type Summary struct {
	ID           string    `json:"session_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
	Model        string    `json:"model"`
	HasDesignDoc bool      `json:"has_design_doc"`
}

// Summarize reduces a session to its listing shape.
func (s *Session) Summarize() Summary {
	sum := Summary{
		ID:           s.ID,
		Name:         s.Name,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Model:        s.Model,
		HasDesignDoc: s.HasDesignDoc(),
	}
	if s.Diagram != nil {
		sum.NodeCount = len(s.Diagram.Nodes)
		sum.EdgeCount = len(s.Diagram.Edges)
	}
	return sum
}
