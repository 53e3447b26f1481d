// Package render is the typed client for the PDF rendering service that
// turns design documents into downloadable files.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/infrasketch/sketchd/internal/telemetry"
	"github.com/infrasketch/sketchd/pkg/session"
)

const defaultTimeout = 30 * time.Second

// Result is a rendered document.
type Result struct {
	Content  []byte
	Filename string
}

// Renderer renders markdown into a PDF.
type Renderer interface {
	RenderPDF(ctx context.Context, title, markdown string) (*Result, error)
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client posts documents to the rendering service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

var _ Renderer = (*Client)(nil)

// NewClient creates a renderer client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		tracer:     telemetry.Tracer("sketchd/render"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type renderRequest struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

type renderResponse struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// RenderPDF renders markdown and returns the decoded document bytes.
func (c *Client) RenderPDF(ctx context.Context, title, markdown string) (_ *Result, err error) {
	ctx, span := c.tracer.Start(ctx, "render.pdf")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	body, err := json.Marshal(renderRequest{Title: title, Markdown: markdown})
	if err != nil {
		return nil, session.ErrServer("marshal render request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render/pdf", bytes.NewReader(body))
	if err != nil {
		return nil, session.ErrServer("create render request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, session.ErrUpstream("renderer request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, session.ErrUpstream("read renderer response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, session.ErrUpstream("renderer: status %d: %s", resp.StatusCode, snippet)
	}

	var result renderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, session.ErrUpstream("unmarshal renderer response: %v", err)
	}

	content, err := base64.StdEncoding.DecodeString(result.Content)
	if err != nil {
		return nil, session.ErrUpstream("renderer returned invalid base64: %v", err)
	}
	if result.Filename == "" {
		result.Filename = "design.pdf"
	}

	c.logger.Debug("rendered design doc",
		slog.String("filename", result.Filename),
		slog.Int("bytes", len(content)))

	return &Result{Content: content, Filename: result.Filename}, nil
}
