package assistant

import (
	"encoding/json"
	"strings"

	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

type generatePayload struct {
	Name    string           `json:"name"`
	Summary string           `json:"summary"`
	Diagram *diagram.Diagram `json:"diagram"`
}

type chatPayload struct {
	Reply   string           `json:"reply"`
	Diagram *diagram.Diagram `json:"diagram"`
}

// parseDiagramReply decodes and validates a generation reply. Invalid
// model output is an upstream error; a broken diagram never reaches
// storage.
func parseDiagramReply(raw string) (*DiagramResult, error) {
	var payload generatePayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, session.ErrUpstream("assistant returned malformed JSON: %v", err)
	}
	if payload.Diagram == nil {
		return nil, session.ErrUpstream("assistant reply carries no diagram")
	}

	normalize(payload.Diagram)
	if err := payload.Diagram.Validate(); err != nil {
		return nil, session.ErrUpstream("assistant produced an invalid diagram: %v", err)
	}

	if payload.Name == "" {
		payload.Name = "Untitled design"
	}
	return &DiagramResult{
		Diagram: payload.Diagram,
		Name:    payload.Name,
		Summary: payload.Summary,
	}, nil
}

// parseChatReply decodes a chat reply. A null or absent diagram means
// the assistant changed nothing; a present one must validate.
func parseChatReply(raw string) (*ChatResult, error) {
	var payload chatPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, session.ErrUpstream("assistant returned malformed JSON: %v", err)
	}
	if payload.Reply == "" {
		return nil, session.ErrUpstream("assistant reply carries no text")
	}

	if payload.Diagram != nil {
		normalize(payload.Diagram)
		if err := payload.Diagram.Validate(); err != nil {
			return nil, session.ErrUpstream("assistant produced an invalid diagram: %v", err)
		}
	}
	return &ChatResult{Reply: payload.Reply, Diagram: payload.Diagram}, nil
}

// normalize fills the slice fields a model may omit so the diagram
// marshals as [] rather than null.
func normalize(d *diagram.Diagram) {
	if d.Nodes == nil {
		d.Nodes = []diagram.Node{}
	}
	if d.Edges == nil {
		d.Edges = []diagram.Edge{}
	}
}

// stripFences unwraps a ```json ... ``` block. Models sometimes fence
// JSON even when asked not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
