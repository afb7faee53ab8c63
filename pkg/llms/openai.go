package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ============================================================================
// OPENAI PROVIDER
// ============================================================================

const (
	openAIDefaultHost  = "https://api.openai.com"
	openAIDefaultModel = "gpt-3.5-turbo"
)

var openAIPricing = map[string]modelRates{
	"gpt-4":         {input: 0.03, output: 0.06},
	"gpt-4-turbo":   {input: 0.01, output: 0.03},
	"gpt-3.5-turbo": {input: 0.0015, output: 0.002},
}

// OpenAIProvider implements Provider for the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey string
	host   string
	client *http.Client
}

// chatRequest is the OpenAI-compatible chat completions payload, shared
// with providers that speak the same wire format.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage      `json:"usage"`
	Error *chatError `json:"error,omitempty"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIProvider creates an OpenAI provider. host overrides the
// default API endpoint when non-empty.
func NewOpenAIProvider(apiKey, host string) *OpenAIProvider {
	if host == "" {
		host = openAIDefaultHost
	}
	return &OpenAIProvider{
		apiKey: apiKey,
		host:   host,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (*Response, error) {
	request := chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if request.Model == "" {
		request.Model = openAIDefaultModel
	}
	if request.Temperature == 0 {
		request.Temperature = 0.7
	}
	if request.MaxTokens == 0 {
		request.MaxTokens = 2000
	}

	response, err := doChatRequest(ctx, p.client, p.host+"/v1/chat/completions", p.apiKey, &request)
	if err != nil {
		return nil, err
	}

	var content string
	if len(response.Choices) > 0 {
		content = response.Choices[0].Message.Content
	}

	return &Response{
		Content:  content,
		Usage:    response.Usage,
		Model:    response.Model,
		Provider: p.Name(),
	}, nil
}

func (p *OpenAIProvider) ValidateKey(ctx context.Context, apiKey string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (p *OpenAIProvider) EstimateCost(tokens int, model string) float64 {
	return estimateCost(openAIPricing, openAIDefaultModel, tokens, model)
}

// doChatRequest posts an OpenAI-compatible chat completion request and
// decodes the response.
func doChatRequest(ctx context.Context, client *http.Client, url, apiKey string, request *chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response chatResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s", response.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}

	return &response, nil
}
