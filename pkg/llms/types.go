// Package llms is the provider gateway: a uniform interface over
// multiple AI completion backends with credential resolution, usage
// accounting and cost estimation.
package llms

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat-style completion request. At most one
// leading system message is expected; backends that only support an
// embedded system prompt fold it into their native shape.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage is normalized token accounting. Backends that do not report
// usage substitute zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a normalized completion result. Model is the identifier
// the backend actually used, which may differ from the requested one.
type Response struct {
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// CallOptions tune a single completion call. Zero values fall back to
// per-provider defaults.
type CallOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider is the shared contract every backend implements.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic", ...).
	Name() string

	// Call executes one completion. Failures are provider-specific
	// errors; the gateway wraps them uniformly.
	Call(ctx context.Context, messages []Message, opts CallOptions) (*Response, error)

	// ValidateKey reports whether the key is usable. It never returns
	// an error; any failure reads as false.
	ValidateKey(ctx context.Context, apiKey string) bool

	// EstimateCost prices a call from its total token count. Unknown
	// models fall back to a default model's rate.
	EstimateCost(tokens int, model string) float64
}

// modelRates is a static price entry per 1K tokens. The output rate is
// tracked but intentionally unused by the current cost formula; see
// estimateCost.
type modelRates struct {
	input  float64
	output float64
}

// estimateCost applies the shared cost formula: tokens/1000 times the
// input rate of the model, or of fallback when the model is unknown.
func estimateCost(pricing map[string]modelRates, fallback string, tokens int, model string) float64 {
	rates, ok := pricing[model]
	if !ok {
		rates = pricing[fallback]
	}
	return float64(tokens) / 1000 * rates.input
}

// ErrNoActiveCredential is returned when a workspace has no active API
// key for any provider.
var ErrNoActiveCredential = errors.New("llms: no active credential configured for workspace")

// ProviderCallError wraps a backend call failure uniformly. The gateway
// performs no retries; retry and backoff are a caller concern.
type ProviderCallError struct {
	Provider string
	Err      error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("llms: %s call failed: %v", e.Provider, e.Err)
}

func (e *ProviderCallError) Unwrap() error { return e.Err }
