package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for question generation. Implementations
// return the provider's JSON payload untouched; callers normalize it.
type Client interface {
	GenerateQuestions(ctx context.Context, input GenerateInput) (json.RawMessage, error)
}

// GenerateInput captures the inputs needed for question generation.
type GenerateInput struct {
	Text  string
	Count int
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// GenerateQuestions returns ErrNotImplemented.
func (PlaceholderClient) GenerateQuestions(ctx context.Context, input GenerateInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotImplemented
}
