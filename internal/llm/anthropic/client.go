package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"study-backend/internal/llm"
	"study-backend/internal/shared/telemetry"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 2000
)

// Client implements llm.Client on top of the Anthropic Messages API.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewClient builds a client for the given key and model. Extra request
// options are passed to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(all...)
	return &Client{client: &client, model: model, maxTokens: defaultMaxTokens}, nil
}

// GenerateQuestions sends one user turn and returns the concatenated text
// blocks of the reply.
func (c *Client) GenerateQuestions(ctx context.Context, input llm.GenerateInput) (json.RawMessage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: llm.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(llm.BuildUserPrompt(input.Text, input.Count))),
		},
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, fmt.Errorf("anthropic response empty content")
	}

	telemetry.Info("llm.response", map[string]any{
		"provider":      "anthropic",
		"model":         c.model,
		"input_tokens":  message.Usage.InputTokens,
		"output_tokens": message.Usage.OutputTokens,
		"stop_reason":   string(message.StopReason),
	})
	return json.RawMessage(text), nil
}

var _ llm.Client = (*Client)(nil)
