// Package client is the Go binding for the sketchd HTTP API: a typed
// Client for every endpoint, polling helpers for the async generation
// protocol, and an Editor that drives a session.Store with optimistic
// UI semantics.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

const (
	defaultBaseURL = "http://localhost:8080/api"
	defaultTimeout = 2 * time.Minute
)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client is the typed HTTP binding. Server-reported failures come back
// as *session.APIError with the wire kind; transport failures and
// unparseable success bodies carry the network kind. The client never
// retries on its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New creates a client for the API at baseURL, which includes the base
// path (for example http://localhost:8080/api). Empty means the local
// default.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "sketchd-client/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do runs one request. pin > 0 adds the diagram version header. A nil
// out discards the response body after the status check.
func (c *Client) do(ctx context.Context, method, path string, pin int64, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return session.ErrNetwork(fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return session.ErrNetwork(fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if pin > 0 {
		req.Header.Set(session.DiagramVersionHeader, strconv.FormatInt(pin, 10))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session.ErrNetwork(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.ErrNetwork(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return session.DecodeError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return session.ErrNetwork(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func sessionPath(sessionID string, rest ...string) string {
	parts := []string{"/session", url.PathEscape(sessionID)}
	parts = append(parts, rest...)
	return strings.Join(parts, "/")
}

// Generate starts diagram generation from a prompt. The returned session
// id is immediately pollable via DiagramStatus; model empty uses the
// server default.
func (c *Client) Generate(ctx context.Context, prompt, model string) (*session.GenerateResponse, error) {
	var out session.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/generate", 0, session.GenerateRequest{Prompt: prompt, Model: model}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiagramStatus fetches one generation poll result.
func (c *Client) DiagramStatus(ctx context.Context, sessionID string) (*session.DiagramStatusResponse, error) {
	var out session.DiagramStatusResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "diagram", "status"), 0, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one conversational turn.
func (c *Client) Chat(ctx context.Context, req session.ChatRequest) (*session.ChatResponse, error) {
	var out session.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", 0, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches the full session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	var out session.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID), 0, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBlank creates an empty completed session for direct editing.
func (c *Client) CreateBlank(ctx context.Context) (*session.CreateBlankResponse, error) {
	var out session.CreateBlankResponse
	if err := c.do(ctx, http.MethodPost, "/session/create-blank", 0, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddNode inserts a node and returns the full diagram.
func (c *Client) AddNode(ctx context.Context, sessionID string, node diagram.Node, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "nodes"), pin, session.AddNodeRequest{Node: node}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateNode applies a partial node update and returns the full diagram.
func (c *Client) UpdateNode(ctx context.Context, sessionID, nodeID string, patch diagram.NodePatch, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodPatch, sessionPath(sessionID, "nodes", url.PathEscape(nodeID)), pin, session.UpdateNodeRequest{Patch: patch}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNode removes a node, cascading its edges and group membership,
// and returns the full diagram.
func (c *Client) DeleteNode(ctx context.Context, sessionID, nodeID string, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodDelete, sessionPath(sessionID, "nodes", url.PathEscape(nodeID)), pin, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddEdge inserts an edge and returns the full diagram.
func (c *Client) AddEdge(ctx context.Context, sessionID string, edge diagram.Edge, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "edges"), pin, session.AddEdgeRequest{Edge: edge}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEdge removes an edge and returns the full diagram.
func (c *Client) DeleteEdge(ctx context.Context, sessionID, edgeID string, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodDelete, sessionPath(sessionID, "edges", url.PathEscape(edgeID)), pin, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroup collects existing nodes into a new collapsed group.
func (c *Client) CreateGroup(ctx context.Context, sessionID string, childIDs []string, pin int64) (*session.CreateGroupResponse, error) {
	var out session.CreateGroupResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "groups"), pin, session.CreateGroupRequest{ChildNodeIDs: childIDs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ungroup dissolves a group, leaving its children top-level, and returns
// the full diagram.
func (c *Client) Ungroup(ctx context.Context, sessionID, groupID string, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodDelete, sessionPath(sessionID, "groups", url.PathEscape(groupID)), pin, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleCollapse flips a group's collapsed state and returns the full
// diagram.
func (c *Client) ToggleCollapse(ctx context.Context, sessionID, groupID string, pin int64) (*diagram.Diagram, error) {
	var out diagram.Diagram
	if err := c.do(ctx, http.MethodPatch, sessionPath(sessionID, "groups", url.PathEscape(groupID), "collapse"), pin, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateDescription asks the assistant to describe a node, persisting
// the result into the diagram.
func (c *Client) GenerateDescription(ctx context.Context, sessionID, nodeID string, pin int64) (*session.DescriptionResponse, error) {
	var out session.DescriptionResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "nodes", url.PathEscape(nodeID), "generate-description"), pin, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateDesignDoc starts design-document generation for a completed
// session.
func (c *Client) GenerateDesignDoc(ctx context.Context, sessionID string) (*session.DesignDocGenerateResponse, error) {
	var out session.DesignDocGenerateResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "design-doc", "generate"), 0, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DesignDocStatus fetches one design-doc poll result.
func (c *Client) DesignDocStatus(ctx context.Context, sessionID string) (*session.DesignDocStatusResponse, error) {
	var out session.DesignDocStatusResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "design-doc", "status"), 0, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDesignDoc replaces the design document content.
func (c *Client) UpdateDesignDoc(ctx context.Context, sessionID, content string) (*session.SuccessResponse, error) {
	var out session.SuccessResponse
	if err := c.do(ctx, http.MethodPatch, sessionPath(sessionID, "design-doc"), 0, session.UpdateDesignDocRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportDesignDoc renders the design document to PDF and returns the
// decoded bytes plus the filename the renderer chose.
func (c *Client) ExportDesignDoc(ctx context.Context, sessionID string) ([]byte, string, error) {
	var out session.ExportResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "design-doc", "export"), 0, nil, &out); err != nil {
		return nil, "", err
	}
	content, err := base64.StdEncoding.DecodeString(out.PDF.Content)
	if err != nil {
		return nil, "", session.ErrNetwork(fmt.Errorf("decode pdf content: %w", err))
	}
	return content, out.PDF.Filename, nil
}

// ListSessions fetches all session summaries, most recently updated
// first.
func (c *Client) ListSessions(ctx context.Context) ([]session.Summary, error) {
	var out []session.Summary
	if err := c.do(ctx, http.MethodGet, "/user/sessions", 0, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rename assigns a human-chosen session name.
func (c *Client) Rename(ctx context.Context, sessionID, name string) (*session.SuccessResponse, error) {
	var out session.SuccessResponse
	if err := c.do(ctx, http.MethodPatch, sessionPath(sessionID, "name"), 0, session.RenameRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete destroys a session and everything in it.
func (c *Client) Delete(ctx context.Context, sessionID string) (*session.SuccessResponse, error) {
	var out session.SuccessResponse
	if err := c.do(ctx, http.MethodDelete, sessionPath(sessionID), 0, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the server is reachable and serving.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", 0, nil, nil)
}
