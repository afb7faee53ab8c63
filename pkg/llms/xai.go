package llms

import (
	"context"
	"net/http"
	"time"
)

// ============================================================================
// XAI PROVIDER
// ============================================================================

// xAI speaks the OpenAI-compatible chat completions wire format; only
// the endpoint, default model and pricing differ.

const (
	xaiDefaultHost  = "https://api.x.ai"
	xaiDefaultModel = "grok-beta"
)

var xaiPricing = map[string]modelRates{
	"grok-beta": {input: 0.01, output: 0.01},
}

// XAIProvider implements Provider for the xAI API.
type XAIProvider struct {
	apiKey string
	host   string
	client *http.Client
}

// NewXAIProvider creates an xAI provider. host overrides the default
// API endpoint when non-empty.
func NewXAIProvider(apiKey, host string) *XAIProvider {
	if host == "" {
		host = xaiDefaultHost
	}
	return &XAIProvider{
		apiKey: apiKey,
		host:   host,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *XAIProvider) Name() string { return "xai" }

func (p *XAIProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (*Response, error) {
	request := chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if request.Model == "" {
		request.Model = xaiDefaultModel
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

func (p *XAIProvider) ValidateKey(ctx context.Context, apiKey string) bool {
	request := chatRequest{
		Model:     xaiDefaultModel,
		Messages:  []Message{{Role: RoleUser, Content: "test"}},
		MaxTokens: 10,
	}
	_, err := doChatRequest(ctx, p.client, p.host+"/v1/chat/completions", apiKey, &request)
	return err == nil
}

func (p *XAIProvider) EstimateCost(tokens int, model string) float64 {
	return estimateCost(xaiPricing, xaiDefaultModel, tokens, model)
}
