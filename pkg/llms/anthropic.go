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
// ANTHROPIC PROVIDER
// ============================================================================

const (
	anthropicDefaultHost  = "https://api.anthropic.com"
	anthropicDefaultModel = "claude-3-sonnet-20240229"
	anthropicVersion      = "2023-06-01"
)

var anthropicPricing = map[string]modelRates{
	"claude-3-opus-20240229":   {input: 0.015, output: 0.075},
	"claude-3-sonnet-20240229": {input: 0.003, output: 0.015},
	"claude-3-haiku-20240307":  {input: 0.00025, output: 0.00125},
}

// AnthropicProvider implements Provider for the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey string
	host   string
	client *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicProvider creates an Anthropic provider. host overrides
// the default API endpoint when non-empty.
func NewAnthropicProvider(apiKey, host string) *AnthropicProvider {
	if host == "" {
		host = anthropicDefaultHost
	}
	return &AnthropicProvider{
		apiKey: apiKey,
		host:   host,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (*Response, error) {
	// The Messages API carries the system prompt in a dedicated field;
	// split it off the ordered user/assistant turns.
	system, turns := splitSystemMessage(messages)

	request := anthropicRequest{
		Model:     opts.Model,
		MaxTokens: opts.MaxTokens,
		System:    system,
	}
	if request.Model == "" {
		request.Model = anthropicDefaultModel
	}
	if request.MaxTokens == 0 {
		request.MaxTokens = 2000
	}
	for _, m := range turns {
		request.Messages = append(request.Messages, anthropicMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	response, err := p.makeRequest(ctx, p.apiKey, &request)
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range response.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		Content: content,
		Usage: Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
		Model:    response.Model,
		Provider: p.Name(),
	}, nil
}

func (p *AnthropicProvider) ValidateKey(ctx context.Context, apiKey string) bool {
	request := anthropicRequest{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 10,
		Messages:  []anthropicMessage{{Role: "user", Content: "test"}},
	}
	_, err := p.makeRequest(ctx, apiKey, &request)
	return err == nil
}

func (p *AnthropicProvider) EstimateCost(tokens int, model string) float64 {
	return estimateCost(anthropicPricing, anthropicDefaultModel, tokens, model)
}

func (p *AnthropicProvider) makeRequest(ctx context.Context, apiKey string, request *anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response anthropicResponse
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

// splitSystemMessage separates an optional leading system message from
// the ordered user/assistant turns.
func splitSystemMessage(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem && system == "" {
			system = m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
