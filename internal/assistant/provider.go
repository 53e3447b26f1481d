// Package assistant is the typed client for the AI backend: an
// OpenAI-compatible chat-completions API that turns prompts into
// diagrams, chat replies, node descriptions, and design documents.
package assistant

import (
	"context"

	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// DiagramResult is a parsed generation reply.
type DiagramResult struct {
	Diagram *diagram.Diagram
	Name    string
	Summary string
}

// ChatRequest bundles one chat turn's context. Messages is the durable
// transcript including the new user message; the provider trims it to
// its token budget.
type ChatRequest struct {
	Model         string
	Messages      []session.Message
	Diagram       *diagram.Diagram
	FocusedNodeID string
}

// ChatResult is a parsed chat reply. Diagram is nil when the assistant
// changed nothing.
type ChatResult struct {
	Reply   string
	Diagram *diagram.Diagram
}

// Provider is the upstream AI interface. Implementations return
// validated diagrams; callers never see referentially broken output.
type Provider interface {
	// GenerateDiagram produces a full diagram, a session name, and a
	// summary message from a natural-language prompt.
	GenerateDiagram(ctx context.Context, prompt, model string) (*DiagramResult, error)

	// Chat answers one conversational turn, optionally returning a
	// modified diagram.
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)

	// DescribeNode writes a short description for one node in context.
	DescribeNode(ctx context.Context, model string, d *diagram.Diagram, nodeID string) (string, error)

	// GenerateDesignDoc writes a markdown design document for the
	// session's diagram.
	GenerateDesignDoc(ctx context.Context, model, name string, d *diagram.Diagram) (string, error)
}
