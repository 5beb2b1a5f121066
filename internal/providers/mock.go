package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"llm_billing_gateway/internal/models"
)

// Token counts reported by MockProvider for every call
const (
	MockPromptTokens     = 10
	MockCompletionTokens = 20
)

// MockProvider answers every request locally with a canned completion.
// It is used for local runs and end-to-end tests.
type MockProvider struct{}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Chat returns a fixed completion that echoes the model name
func (p *MockProvider) Chat(ctx context.Context, payload map[string]any) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := ModelFromPayload(payload)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": fmt.Sprintf("This is a mock response from %s", model),
			},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{
			"prompt_tokens":     MockPromptTokens,
			"completion_tokens": MockCompletionTokens,
			"total_tokens":      MockPromptTokens + MockCompletionTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mock response: %w", err)
	}

	return &ChatResponse{
		StatusCode: 200,
		Body:       body,
		Usage: models.Usage{
			PromptTokens:     MockPromptTokens,
			CompletionTokens: MockCompletionTokens,
			ModelName:        model,
		},
	}, nil
}
