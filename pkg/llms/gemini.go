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
// GEMINI PROVIDER
// ============================================================================

const (
	geminiDefaultHost  = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-pro"
)

var geminiPricing = map[string]modelRates{
	"gemini-pro":        {input: 0.00025, output: 0.0005},
	"gemini-pro-vision": {input: 0.00025, output: 0.0005},
}

// GeminiProvider implements Provider for the Google Generative Language
// API.
type GeminiProvider struct {
	apiKey string
	host   string
	client *http.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGeminiProvider creates a Gemini provider. host overrides the
// default API endpoint when non-empty.
func NewGeminiProvider(apiKey, host string) *GeminiProvider {
	if host == "" {
		host = geminiDefaultHost
	}
	return &GeminiProvider{
		apiKey: apiKey,
		host:   host,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (*Response, error) {
	model := opts.Model
	if model == "" {
		model = geminiDefaultModel
	}

	// Gemini has no dedicated system field on this endpoint; fold the
	// system prompt into the first user turn.
	system, turns := splitSystemMessage(messages)

	var request geminiRequest
	for i, m := range turns {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		text := m.Content
		if i == 0 && system != "" && role == "user" {
			text = system + "\n\n" + text
		}
		request.Contents = append(request.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: text}},
		})
	}

	response, err := p.makeRequest(ctx, p.apiKey, model, &request)
	if err != nil {
		return nil, err
	}

	var content string
	if len(response.Candidates) > 0 {
		for _, part := range response.Candidates[0].Content.Parts {
			content += part.Text
		}
	}

	return &Response{
		Content: content,
		// This endpoint does not report token usage; normalize to zero.
		Usage:    Usage{},
		Model:    model,
		Provider: p.Name(),
	}, nil
}

func (p *GeminiProvider) ValidateKey(ctx context.Context, apiKey string) bool {
	request := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: "test"}}}},
	}
	_, err := p.makeRequest(ctx, apiKey, geminiDefaultModel, &request)
	return err == nil
}

func (p *GeminiProvider) EstimateCost(tokens int, model string) float64 {
	return estimateCost(geminiPricing, geminiDefaultModel, tokens, model)
}

func (p *GeminiProvider) makeRequest(ctx context.Context, apiKey, model string, request *geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.host, model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
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

	var response geminiResponse
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
