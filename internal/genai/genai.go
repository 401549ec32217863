// Package genai provides the LLM client for Wednesday.
//
// Gemini is reached through its OpenAI-compatible endpoint, so the client is a
// thin wrapper over the openai-go chat completions API with function-calling
// support. Calls carry a hard deadline; cancellation propagates into the
// underlying HTTP request rather than abandoning it.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GeminiBaseURL is Gemini's OpenAI-compatible API endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// DefaultTimeout is the hard deadline applied to each LLM call.
const DefaultTimeout = 30 * time.Second

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the Gemini API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// ToolCall is a structured function invocation returned by the model.
// Arguments is the raw JSON argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatResult is the outcome of a chat call: free text, tool calls, or both.
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
}

// ClientInterface defines the LLM operations the dispatcher depends on.
// It exists so tests can substitute a fake model.
type ClientInterface interface {
	ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ChatResult, error)
}

// chatCompleter is the minimal slice of the openai-go client used here.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the chat completions service for a single configured model.
type Client struct {
	chat    chatCompleter
	model   string
	timeout time.Duration
}

// NewClient initializes a GenAI client from the provided options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: GeminiBaseURL, Model: DefaultModel, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	cli := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)
	slog.Debug("genai.NewClient initialized", "model", cfg.Model, "base_url", cfg.BaseURL)
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// newClientWithCompleter is used by tests to inject a fake completions service.
func newClientWithCompleter(chat chatCompleter, model string, timeout time.Duration) *Client {
	return &Client{chat: chat, model: model, timeout: timeout}
}

// ChatWithTools sends the messages with the given tool declarations attached,
// function-calling mode automatic. The call is bounded by the configured
// deadline; on expiry the in-flight HTTP request is cancelled.
func (c *Client) ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	msg := resp.Choices[0].Message
	result := &ChatResult{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	slog.Debug("genai.ChatWithTools completed", "tool_calls", len(result.ToolCalls), "content_length", len(result.Content))
	return result, nil
}
