package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"study-backend/internal/llm"
	"study-backend/internal/shared/telemetry"
)

const (
	defaultAPIURL    = "https://api.openai.com/v1/chat/completions"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 2000
)

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	apiURL     string
	maxTokens  int
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. An empty model means gpt-4o.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:    apiKey,
		model:     model,
		apiURL:    defaultAPIURL,
		maxTokens: defaultMaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float32       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ResponseFormat      responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GenerateQuestions asks the model for input.Count question/answer pairs and
// returns the JSON content of the first choice.
func (c *Client) GenerateQuestions(ctx context.Context, input llm.GenerateInput) (json.RawMessage, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: llm.BuildUserPrompt(input.Text, input.Count)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if isGPT5(c.model) {
		reqBody.MaxCompletionTokens = c.maxTokens
	} else {
		temp := float32(0.3)
		reqBody.Temperature = &temp
		reqBody.MaxTokens = c.maxTokens
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai response empty content")
	}
	logUsage(c.model, parsed)
	return json.RawMessage(content), nil
}

func logUsage(model string, resp chatResponse) {
	fields := map[string]any{"provider": "openai", "model": model}
	if resp.Usage != nil {
		fields["prompt_tokens"] = resp.Usage.PromptTokens
		fields["completion_tokens"] = resp.Usage.CompletionTokens
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Client = (*Client)(nil)
