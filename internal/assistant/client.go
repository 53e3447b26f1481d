package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/infrasketch/sketchd/internal/telemetry"
	"github.com/infrasketch/sketchd/internal/tokens"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
	defaultTimeout = 60 * time.Second
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different OpenAI-compatible
// endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithModel sets the default model used when a call does not name one.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTokenBudget caps the transcript tokens sent per chat call. Zero
// disables trimming.
func WithTokenBudget(budget int) Option {
	return func(c *Client) {
		c.budget = budget
	}
}

// Client speaks the chat-completions protocol and implements Provider.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	budget     int
	httpClient *http.Client
	logger     *slog.Logger
	counter    *tokens.Counter
	tracer     trace.Tracer
}

var _ Provider = (*Client)(nil)

// NewClient creates an assistant client. The zero-option client targets
// the OpenAI API with a 60s timeout.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		counter:    tokens.NewCounter(),
		tracer:     telemetry.Tracer("sketchd/assistant"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// GenerateDiagram produces a diagram, name, and summary from a prompt.
func (c *Client) GenerateDiagram(ctx context.Context, prompt, model string) (*DiagramResult, error) {
	raw, err := c.complete(ctx, "generate_diagram", model, generateSystemPrompt, []chatMessage{
		{Role: "user", Content: prompt},
	}, true)
	if err != nil {
		return nil, err
	}
	return parseDiagramReply(raw)
}

// Chat answers one conversational turn with the diagram as context.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	model := c.resolveModel(req.Model)
	msgs := []chatMessage{
		{Role: "user", Content: chatContext(req.Diagram, req.FocusedNodeID)},
	}
	for _, m := range c.counter.TrimTranscript(model, req.Messages, c.budget) {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	raw, err := c.complete(ctx, "chat", model, chatSystemPrompt, msgs, true)
	if err != nil {
		return nil, err
	}
	return parseChatReply(raw)
}

// DescribeNode writes a short plain-text description of one node.
func (c *Client) DescribeNode(ctx context.Context, model string, d *diagram.Diagram, nodeID string) (string, error) {
	raw, err := c.complete(ctx, "describe_node", model, describeSystemPrompt, []chatMessage{
		{Role: "user", Content: describePrompt(d, nodeID)},
	}, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// GenerateDesignDoc writes a markdown design document for the diagram.
func (c *Client) GenerateDesignDoc(ctx context.Context, model, name string, d *diagram.Diagram) (string, error) {
	raw, err := c.complete(ctx, "generate_design_doc", model, designDocSystemPrompt, []chatMessage{
		{Role: "user", Content: designDocPrompt(name, d)},
	}, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripFences(raw)), nil
}

// complete runs one chat-completions call and returns the first choice's
// content. jsonMode requests a JSON object response.
func (c *Client) complete(ctx context.Context, op, model, system string, msgs []chatMessage, jsonMode bool) (_ string, err error) {
	model = c.resolveModel(model)

	ctx, span := c.tracer.Start(ctx, "assistant."+op)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("assistant.model", model))

	req := chatCompletionRequest{
		Model:    model,
		Messages: append([]chatMessage{{Role: "system", Content: system}}, msgs...),
	}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", session.ErrServer("marshal assistant request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", session.ErrServer("create assistant request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", "sketchd/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", session.ErrUpstream("assistant request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", session.ErrUpstream("read assistant response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", session.ErrUpstream("assistant: %s", upstreamMessage(resp.StatusCode, respBody))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", session.ErrUpstream("unmarshal assistant response: %v", err)
	}
	if len(result.Choices) == 0 {
		return "", session.ErrUpstream("assistant returned no choices")
	}

	c.logger.Debug("assistant call complete",
		slog.String("op", op),
		slog.String("model", model),
		slog.Int("total_tokens", result.Usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))

	return result.Choices[0].Message.Content, nil
}

func (c *Client) resolveModel(model string) string {
	if model == "" {
		return c.model
	}
	return model
}

// upstreamMessage extracts the API's error message when the body carries
// one, falling back to the status and a truncated body.
func upstreamMessage(status int, body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Sprintf("status %d: %s", status, snippet)
}
