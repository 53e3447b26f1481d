// Package assistanttest provides a scripted in-memory Provider for
// service, handler, and CLI tests.
package assistanttest

import (
	"context"
	"sync"

	"github.com/infrasketch/sketchd/internal/assistant"
	"github.com/infrasketch/sketchd/pkg/diagram"
)

// Fake implements assistant.Provider from scripted fields. The zero
// value fails every call; New returns one preloaded with plausible
// results. Fields may be reassigned between calls; methods are safe for
// concurrent use.
type Fake struct {
	mu sync.Mutex

	DiagramResult *assistant.DiagramResult
	DiagramErr    error
	ChatResult    *assistant.ChatResult
	ChatErr       error
	Description   string
	DescribeErr   error
	DesignDoc     string
	DesignDocErr  error

	// OnCall, when set, runs at the start of every method with the
	// method name. Tests block inside it to observe in-flight states.
	OnCall func(method string)

	calls      []string
	lastChat   assistant.ChatRequest
	lastPrompt string
}

// New returns a Fake that answers every call successfully with canned
// content.
func New() *Fake {
	return &Fake{
		DiagramResult: &assistant.DiagramResult{
			Diagram: SampleDiagram(),
			Name:    "Test design",
			Summary: "A two-tier design with an API in front of a database.",
		},
		ChatResult:  &assistant.ChatResult{Reply: "Here is my take on that."},
		Description: "Serves client traffic and fans out to the backing services.",
		DesignDoc:   "# Test design\n\n## Overview\n\nA two-tier system.",
	}
}

// SampleDiagram returns a small valid diagram for tests to build on.
func SampleDiagram() *diagram.Diagram {
	return &diagram.Diagram{
		Nodes: []diagram.Node{
			{ID: "api", Type: "api", Label: "API", Position: diagram.Position{X: 100, Y: 100}},
			{ID: "db", Type: "database", Label: "Database", Position: diagram.Position{X: 400, Y: 100}},
		},
		Edges: []diagram.Edge{
			{ID: "api_db", Source: "api", Target: "db", Label: "queries"},
		},
	}
}

func (f *Fake) begin(method string) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	hook := f.OnCall
	f.mu.Unlock()
	if hook != nil {
		hook(method)
	}
}

func (f *Fake) GenerateDiagram(ctx context.Context, prompt, model string) (*assistant.DiagramResult, error) {
	f.begin("GenerateDiagram")
	f.mu.Lock()
	f.lastPrompt = prompt
	result, err := f.DiagramResult, f.DiagramErr
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, err
}

func (f *Fake) Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.ChatResult, error) {
	f.begin("Chat")
	f.mu.Lock()
	f.lastChat = req
	result, err := f.ChatResult, f.ChatErr
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, err
}

func (f *Fake) DescribeNode(ctx context.Context, model string, d *diagram.Diagram, nodeID string) (string, error) {
	f.begin("DescribeNode")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Description, f.DescribeErr
}

func (f *Fake) GenerateDesignDoc(ctx context.Context, model, name string, d *diagram.Diagram) (string, error) {
	f.begin("GenerateDesignDoc")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.DesignDoc, f.DesignDocErr
}

// Calls returns the method names invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// LastChat returns the most recent Chat request.
func (f *Fake) LastChat() assistant.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastChat
}

// LastPrompt returns the most recent GenerateDiagram prompt.
func (f *Fake) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}
