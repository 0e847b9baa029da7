package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playforge/api/internal/config"
	"github.com/playforge/api/internal/models"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultVersion   = "2023-06-01"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultMaxTokens = 2000

	maxErrorBody = 64 << 10
	maxReplyBody = 8 << 20
)

var tracer = otel.Tracer("github.com/playforge/api/internal/anthropic")

// Client calls the Anthropic Messages API once per Generate call.
// It has no retries and no client-side timeout; the caller's context bounds the call.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	version   string
	maxTokens int
	client    *http.Client
}

// NewClient creates a client. A nil httpClient uses a fresh http.Client.
func NewClient(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		version:   cfg.Version,
		maxTokens: cfg.MaxTokens,
		client:    httpClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.version == "" {
		c.version = DefaultVersion
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	return c
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the model name sent upstream
func (c *Client) Model() string {
	return c.model
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate asks the model for a game document built from prompt and returns
// the undecoded content blocks. Every expected failure is a *Failure.
func (c *Client) Generate(ctx context.Context, prompt string) (*models.ExternalReply, error) {
	if !c.Configured() {
		return nil, &Failure{Reason: ReasonUnconfigured}
	}

	ctx, span := tracer.Start(ctx, "anthropic.messages", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model), attribute.Int("llm.max_tokens", c.maxTokens))

	reply, err := c.post(ctx, messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    SystemPrompt(),
		Messages:  []message{{Role: "user", Content: UserMessage(prompt)}},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("llm.content_blocks", len(reply.Content)))
	return reply, nil
}

func (c *Client) post(ctx context.Context, payload messagesRequest) (*models.ExternalReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Failure{Reason: ReasonTransport, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
	req.Header.Set("content-type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Failure{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Failure{Reason: ReasonStatus, Status: resp.StatusCode, Body: string(errorBody)}
	}

	var reply models.ExternalReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(&reply); err != nil {
		return nil, &Failure{Reason: ReasonDecode, Status: resp.StatusCode, Err: err}
	}
	return &reply, nil
}
