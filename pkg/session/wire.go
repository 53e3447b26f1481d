package session

import "github.com/infrasketch/sketchd/pkg/diagram"

// DiagramVersionHeader pins the diagram version a mutation was computed
// against. Mutations carrying a stale pin are rejected with the conflict
// kind; omitting the header keeps last-write-wins semantics.
const DiagramVersionHeader = "X-Diagram-Version"

// GenerateRequest starts diagram generation from a natural-language
// prompt. Model selects the assistant model; empty uses the server
// default.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// GenerateResponse acknowledges a generation start.
type GenerateResponse struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`
}

// DiagramStatusResponse is one generation poll result. Diagram, Messages,
// Name, and DurationSeconds are present only once Status is completed;
// Error only once failed.
type DiagramStatusResponse struct {
	Status          Status           `json:"status"`
	Diagram         *diagram.Diagram `json:"diagram,omitempty"`
	Messages        []Message        `json:"messages,omitempty"`
	Name            string           `json:"name,omitempty"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// ChatRequest sends one user message, optionally scoped to a focused
// node.
type ChatRequest struct {
	SessionID     string `json:"session_id"`
	Message       string `json:"message"`
	FocusedNodeID string `json:"focused_node_id,omitempty"`
}

// ChatResponse carries the assistant reply; Diagram is set only when the
// reply modified the diagram.
type ChatResponse struct {
	Response string           `json:"response"`
	Diagram  *diagram.Diagram `json:"diagram,omitempty"`
}

// CreateBlankResponse acknowledges a blank session with its empty
// diagram.
type CreateBlankResponse struct {
	SessionID string           `json:"session_id"`
	Diagram   *diagram.Diagram `json:"diagram"`
}

// AddNodeRequest wraps the node to insert. A blank id is assigned by the
// server.
type AddNodeRequest struct {
	Node diagram.Node `json:"node"`
}

// UpdateNodeRequest wraps a partial node update.
type UpdateNodeRequest struct {
	Patch diagram.NodePatch `json:"patch"`
}

// AddEdgeRequest wraps the edge to insert. A blank id is assigned by the
// server.
type AddEdgeRequest struct {
	Edge diagram.Edge `json:"edge"`
}

// CreateGroupRequest names the existing nodes to collect into a new
// group.
type CreateGroupRequest struct {
	ChildNodeIDs []string `json:"child_node_ids"`
}

// CreateGroupResponse carries the new group's id alongside the full
// diagram.
type CreateGroupResponse struct {
	Diagram *diagram.Diagram `json:"diagram"`
	GroupID string           `json:"group_id"`
}

// DescriptionResponse carries an AI-generated node description alongside
// the full diagram it was written into.
type DescriptionResponse struct {
	Description string           `json:"description"`
	Diagram     *diagram.Diagram `json:"diagram"`
}

// DesignDocGenerateResponse acknowledges a design-doc generation start.
type DesignDocGenerateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DesignDocStatusResponse is one design-doc poll result.
type DesignDocStatusResponse struct {
	Status          DesignDocStatus `json:"status"`
	DesignDoc       string          `json:"design_doc,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// UpdateDesignDocRequest replaces the design document content.
type UpdateDesignDocRequest struct {
	Content string `json:"content"`
}

// RenameRequest assigns a human-chosen session name.
type RenameRequest struct {
	Name string `json:"name"`
}

// SuccessResponse is the generic acknowledgement for rename, delete, and
// design-doc update.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
}

// PDFPayload is a rendered document: base64 content plus the filename
// the renderer chose.
type PDFPayload struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// ExportResponse wraps a rendered design document.
type ExportResponse struct {
	PDF PDFPayload `json:"pdf"`
}
