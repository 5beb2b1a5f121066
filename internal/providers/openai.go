package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llm_billing_gateway/internal/models"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"

	// maxResponseBytes caps how much of an upstream body is buffered
	maxResponseBytes = 16 << 20
)

// OpenAIConfig configures an OpenAI-compatible upstream
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
type OpenAIProvider struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	// Timeouts come from the caller's context
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		client:  client,
		baseURL: baseURL,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAIUsageEnvelope struct {
	Model string `json:"model"`
	Usage *struct {
		PromptTokens     uint64 `json:"prompt_tokens"`
		CompletionTokens uint64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request and extracts the reported usage
func (p *OpenAIProvider) Chat(ctx context.Context, payload map[string]any) (*ChatResponse, error) {
	start := time.Now()

	requested, err := ModelFromPayload(payload)
	if err != nil {
		return nil, err
	}
	if stream, _ := payload["stream"].(bool); stream {
		return nil, ErrStreamingUnsupported
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var envelope openAIUsageEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Usage == nil {
		return nil, fmt.Errorf("response carries no usage")
	}

	model := envelope.Model
	if model == "" {
		model = requested
	}
	usage, err := models.NewUsage(envelope.Usage.PromptTokens, envelope.Usage.CompletionTokens, model)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Latency:    time.Since(start),
		Usage:      usage,
	}, nil
}
