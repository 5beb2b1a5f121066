package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"llm_billing_gateway/internal/models"
)

var (
	// ErrStreamingUnsupported is returned for stream=true payloads, which cannot be metered
	ErrStreamingUnsupported = errors.New("streaming responses are not supported")

	// ErrMissingModel is returned when the payload names no model
	ErrMissingModel = errors.New("payload must name a model")
)

// ChatResponse is a provider answer plus the usage it reported
type ChatResponse struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
	Usage      models.Usage
}

// Provider forwards one OpenAI-style chat completion payload upstream
type Provider interface {
	Name() string
	Chat(ctx context.Context, payload map[string]any) (*ChatResponse, error)
}

// StatusError is returned when the upstream answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model API returned status %d", e.StatusCode)
}

// ModelFromPayload returns the requested model name
func ModelFromPayload(payload map[string]any) (string, error) {
	model, _ := payload["model"].(string)
	if model == "" {
		return "", ErrMissingModel
	}
	return model, nil
}
