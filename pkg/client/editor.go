package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// OpKind names one Editor operation slot.
type OpKind string

const (
	OpAddNode        OpKind = "add_node"
	OpUpdateNode     OpKind = "update_node"
	OpDeleteNode     OpKind = "delete_node"
	OpAddEdge        OpKind = "add_edge"
	OpDeleteEdge     OpKind = "delete_edge"
	OpCreateGroup    OpKind = "create_group"
	OpUngroup        OpKind = "ungroup"
	OpToggleCollapse OpKind = "toggle_collapse"
	OpDescribe       OpKind = "generate_description"
	OpChat           OpKind = "chat"
)

// OpState is the lifecycle of an operation slot.
type OpState string

const (
	OpIdle     OpState = "idle"
	OpPending  OpState = "pending"
	OpResolved OpState = "resolved"
	OpFailed   OpState = "failed"
)

// OpStatus is a snapshot of one operation slot: its state and, when
// failed, the error that ended the last attempt.
type OpStatus struct {
	State OpState
	Err   error
}

// Editor drives a session.Store through the API. Successful mutations
// replace the store's diagram with the server's response in full and
// append a system audit entry; failed mutations leave the store
// untouched. Each mutation pins the diagram version the store last saw,
// so an edit racing another writer comes back as a conflict instead of
// silently losing.
//
// There is one slot per operation kind but no queueing: overlapping
// calls of the same kind race, and the slot reflects whichever finished
// last. The slots exist to make that window observable, not to close it.
type Editor struct {
	client *Client
	store  *session.Store

	mu  sync.Mutex
	ops map[OpKind]OpStatus
}

// NewEditor couples a client with a store. A nil store gets a fresh
// empty one.
func NewEditor(c *Client, store *session.Store) *Editor {
	if store == nil {
		store = session.NewStore()
	}
	return &Editor{
		client: c,
		store:  store,
		ops:    make(map[OpKind]OpStatus),
	}
}

// Store exposes the underlying session store.
func (e *Editor) Store() *session.Store {
	return e.store
}

// Load fetches a session and replaces the store content with it,
// resetting every operation slot.
func (e *Editor) Load(ctx context.Context, sessionID string) error {
	sess, err := e.client.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	e.store.Load(sess)

	e.mu.Lock()
	e.ops = make(map[OpKind]OpStatus)
	e.mu.Unlock()
	return nil
}

// Op returns the current snapshot of an operation slot.
func (e *Editor) Op(kind OpKind) OpStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.ops[kind]
	if !ok {
		return OpStatus{State: OpIdle}
	}
	return st
}

func (e *Editor) begin(kind OpKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops[kind] = OpStatus{State: OpPending}
}

func (e *Editor) finish(kind OpKind, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.ops[kind] = OpStatus{State: OpFailed, Err: err}
		return
	}
	e.ops[kind] = OpStatus{State: OpResolved}
}

func (e *Editor) sessionID() (string, error) {
	id := e.store.SessionID()
	if id == "" {
		return "", session.ErrInvalidRequest("no active session")
	}
	return id, nil
}

func (e *Editor) audit(format string, args ...any) {
	e.store.AppendMessage(session.NewMessage(session.RoleSystem, fmt.Sprintf(format, args...)))
}

// AddNode inserts a node into the active diagram.
func (e *Editor) AddNode(ctx context.Context, node diagram.Node) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}

	e.begin(OpAddNode)
	d, err := e.client.AddNode(ctx, id, node, e.store.DiagramVersion())
	e.finish(OpAddNode, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	label := node.Label
	if label == "" {
		label = node.ID
	}
	e.audit("Added node: %s", label)
	return d, nil
}

// UpdateNode applies a partial update to one node.
func (e *Editor) UpdateNode(ctx context.Context, nodeID string, patch diagram.NodePatch) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}

	e.begin(OpUpdateNode)
	d, err := e.client.UpdateNode(ctx, id, nodeID, patch, e.store.DiagramVersion())
	e.finish(OpUpdateNode, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	e.audit("Updated node: %s", nodeLabel(d, nodeID))
	return d, nil
}

// DeleteNode removes a node, its edges, and its group membership.
func (e *Editor) DeleteNode(ctx context.Context, nodeID string) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}
	// The label is gone from the response; name it from the local copy.
	label := nodeLabel(e.store.Diagram(), nodeID)

	e.begin(OpDeleteNode)
	d, err := e.client.DeleteNode(ctx, id, nodeID, e.store.DiagramVersion())
	e.finish(OpDeleteNode, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	e.audit("Deleted node: %s", label)
	return d, nil
}

// AddEdge inserts an edge between two existing nodes.
func (e *Editor) AddEdge(ctx context.Context, edge diagram.Edge) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}

	e.begin(OpAddEdge)
	d, err := e.client.AddEdge(ctx, id, edge, e.store.DiagramVersion())
	e.finish(OpAddEdge, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	e.audit("Added edge: %s -> %s", nodeLabel(d, edge.Source), nodeLabel(d, edge.Target))
	return d, nil
}

// DeleteEdge removes an edge.
func (e *Editor) DeleteEdge(ctx context.Context, edgeID string) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}
	text := edgeID
	if local := e.store.Diagram(); local != nil {
		if edge := local.EdgeByID(edgeID); edge != nil {
			text = fmt.Sprintf("%s -> %s", nodeLabel(local, edge.Source), nodeLabel(local, edge.Target))
		}
	}

	e.begin(OpDeleteEdge)
	d, err := e.client.DeleteEdge(ctx, id, edgeID, e.store.DiagramVersion())
	e.finish(OpDeleteEdge, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	e.audit("Deleted edge: %s", text)
	return d, nil
}

// CreateGroup collects nodes into a new collapsed group and returns the
// diagram plus the new group's id.
func (e *Editor) CreateGroup(ctx context.Context, childIDs []string) (*diagram.Diagram, string, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, "", err
	}

	e.begin(OpCreateGroup)
	resp, err := e.client.CreateGroup(ctx, id, childIDs, e.store.DiagramVersion())
	e.finish(OpCreateGroup, err)
	if err != nil {
		return nil, "", err
	}

	e.store.ApplyDiagram(resp.Diagram)
	e.audit("Created group: %s", nodeLabel(resp.Diagram, resp.GroupID))
	return resp.Diagram, resp.GroupID, nil
}

// Ungroup dissolves a group, leaving its children in place.
func (e *Editor) Ungroup(ctx context.Context, groupID string) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}
	label := nodeLabel(e.store.Diagram(), groupID)

	e.begin(OpUngroup)
	d, err := e.client.Ungroup(ctx, id, groupID, e.store.DiagramVersion())
	e.finish(OpUngroup, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	e.audit("Ungrouped: %s", label)
	return d, nil
}

// ToggleCollapse flips a group's collapsed state.
func (e *Editor) ToggleCollapse(ctx context.Context, groupID string) (*diagram.Diagram, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}

	e.begin(OpToggleCollapse)
	d, err := e.client.ToggleCollapse(ctx, id, groupID, e.store.DiagramVersion())
	e.finish(OpToggleCollapse, err)
	if err != nil {
		return nil, err
	}

	e.store.ApplyDiagram(d)
	verb := "Expanded"
	if n := d.NodeByID(groupID); n != nil && n.IsCollapsed {
		verb = "Collapsed"
	}
	e.audit("%s group: %s", verb, nodeLabel(d, groupID))
	return d, nil
}

// GenerateDescription asks the assistant to describe a node and applies
// the updated diagram.
func (e *Editor) GenerateDescription(ctx context.Context, nodeID string) (string, error) {
	id, err := e.sessionID()
	if err != nil {
		return "", err
	}

	e.begin(OpDescribe)
	resp, err := e.client.GenerateDescription(ctx, id, nodeID, e.store.DiagramVersion())
	e.finish(OpDescribe, err)
	if err != nil {
		return "", err
	}

	e.store.ApplyDiagram(resp.Diagram)
	e.audit("Generated description for: %s", nodeLabel(resp.Diagram, nodeID))
	return resp.Description, nil
}

// SendChat sends one user message scoped to the current selection. The
// user message lands in the transcript before the call so it survives a
// failed turn; failures additionally append a local error notice. The
// diagram is replaced only when the reply carries one, and the chat path
// never writes audit entries.
func (e *Editor) SendChat(ctx context.Context, text string) (*session.ChatResponse, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}

	e.store.AppendMessage(session.NewMessage(session.RoleUser, text))

	e.begin(OpChat)
	resp, err := e.client.Chat(ctx, session.ChatRequest{
		SessionID:     id,
		Message:       text,
		FocusedNodeID: e.store.Selection(),
	})
	e.finish(OpChat, err)
	if err != nil {
		e.store.AppendMessage(session.NewMessage(session.RoleAssistant, chatNotice(err)))
		return nil, err
	}

	if resp.Diagram != nil {
		e.store.ApplyDiagram(resp.Diagram)
	}
	e.store.AppendMessage(session.NewMessage(session.RoleAssistant, resp.Response))
	return resp, nil
}

// Rename assigns a human-chosen name to the active session.
func (e *Editor) Rename(ctx context.Context, name string) error {
	id, err := e.sessionID()
	if err != nil {
		return err
	}
	if _, err := e.client.Rename(ctx, id, name); err != nil {
		return err
	}
	e.store.SetName(name, false)
	return nil
}

// GenerateDesignDoc starts design-document generation for the active
// session, keeping any previous content visible while the new one runs.
func (e *Editor) GenerateDesignDoc(ctx context.Context) error {
	id, err := e.sessionID()
	if err != nil {
		return err
	}
	if _, err := e.client.GenerateDesignDoc(ctx, id); err != nil {
		return err
	}
	content, _ := e.store.DesignDoc()
	e.store.SetDesignDoc(content, session.DesignDocGenerating)
	return nil
}

// WaitForDesignDoc polls until the design document reaches a terminal
// state and lands the result in the store.
func (e *Editor) WaitForDesignDoc(ctx context.Context, opts PollOptions) (*session.DesignDocStatusResponse, error) {
	id, err := e.sessionID()
	if err != nil {
		return nil, err
	}
	resp, err := e.client.WaitForDesignDoc(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case session.DesignDocCompleted:
		e.store.SetDesignDoc(resp.DesignDoc, session.DesignDocCompleted)
	case session.DesignDocFailed:
		content, _ := e.store.DesignDoc()
		e.store.SetDesignDoc(content, session.DesignDocFailed)
	}
	return resp, nil
}

// UpdateDesignDoc replaces the design document content on the server and
// in the store.
func (e *Editor) UpdateDesignDoc(ctx context.Context, content string) error {
	id, err := e.sessionID()
	if err != nil {
		return err
	}
	if _, err := e.client.UpdateDesignDoc(ctx, id, content); err != nil {
		return err
	}
	e.store.SetDesignDoc(content, session.DesignDocCompleted)
	return nil
}

// nodeLabel names a node for transcript entries, falling back to its id.
func nodeLabel(d *diagram.Diagram, nodeID string) string {
	if d != nil {
		if n := d.NodeByID(nodeID); n != nil && n.Label != "" {
			return n.Label
		}
	}
	return nodeID
}

// chatNotice renders a failed chat turn as an inline assistant entry.
func chatNotice(err error) string {
	var apiErr *session.APIError
	if errors.As(err, &apiErr) {
		return "Sorry, that request failed: " + apiErr.Message
	}
	return "Sorry, that request failed: " + err.Error()
}
