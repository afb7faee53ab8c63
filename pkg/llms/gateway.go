package llms

import (
	"context"
	"fmt"
	"time"

	"github.com/crewdhq/crewd/pkg/logger"
	"github.com/crewdhq/crewd/pkg/metrics"
	"github.com/crewdhq/crewd/pkg/secrets"
	"github.com/crewdhq/crewd/pkg/store"
)

// ============================================================================
// PROVIDER GATEWAY
// ============================================================================

// ProviderFactory builds a Provider for a provider name and decrypted
// API key. Injectable so tests can substitute mock backends.
type ProviderFactory func(provider, apiKey string) (Provider, error)

// DefaultProviderFactory maps provider names to the built-in backends.
func DefaultProviderFactory(provider, apiKey string) (Provider, error) {
	switch provider {
	case "openai":
		return NewOpenAIProvider(apiKey, ""), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, ""), nil
	case "gemini", "google":
		return NewGeminiProvider(apiKey, ""), nil
	case "xai":
		return NewXAIProvider(apiKey, ""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Gateway resolves which backend a workspace call should use, executes
// the call and accounts for usage and cost. All backend-specific
// request and response shapes stay behind it.
type Gateway struct {
	store   store.Store
	cipher  *secrets.Cipher
	metrics *metrics.Metrics
	factory ProviderFactory
}

// NewGateway creates a gateway. metrics may be nil; factory falls back
// to DefaultProviderFactory when nil.
func NewGateway(st store.Store, cipher *secrets.Cipher, m *metrics.Metrics, factory ProviderFactory) *Gateway {
	if factory == nil {
		factory = DefaultProviderFactory
	}
	return &Gateway{store: st, cipher: cipher, metrics: m, factory: factory}
}

// ResolveProvider picks the backend for a workspace from its active
// credentials. When multiple credentials are active the oldest wins:
// the store returns them in stable creation order and the first is
// taken, so the selection is deterministic rather than arbitrary.
func (g *Gateway) ResolveProvider(ctx context.Context, workspaceID string) (Provider, error) {
	creds, err := g.store.GetActiveCredentials(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, ErrNoActiveCredential
	}

	cred := creds[0]
	apiKey, err := g.cipher.Decrypt(cred.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential for %s: %w", cred.Provider, err)
	}

	return g.factory(cred.Provider, apiKey)
}

// Call resolves the workspace's provider, executes one completion and
// records usage. Call failures come back as *ProviderCallError; the
// gateway performs no retries.
func (g *Gateway) Call(ctx context.Context, workspaceID, agentID string, messages []Message, opts CallOptions) (*Response, error) {
	provider, err := g.ResolveProvider(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	response, err := provider.Call(ctx, messages, opts)
	if err != nil {
		return nil, &ProviderCallError{Provider: provider.Name(), Err: err}
	}

	g.trackUsage(ctx, workspaceID, agentID, provider, response)
	return response, nil
}

// ValidateKey reports whether an API key is usable with the named
// provider. Never returns an error; unknown providers read as false.
func (g *Gateway) ValidateKey(ctx context.Context, providerName, apiKey string) bool {
	provider, err := g.factory(providerName, apiKey)
	if err != nil {
		return false
	}
	return provider.ValidateKey(ctx, apiKey)
}

// trackUsage persists one audit record and bumps the per-workspace
// per-day per-provider counter. Accounting failures are logged, not
// surfaced: the completion already succeeded and is not discarded over
// bookkeeping.
func (g *Gateway) trackUsage(ctx context.Context, workspaceID, agentID string, provider Provider, response *Response) {
	cost := provider.EstimateCost(response.Usage.TotalTokens, response.Model)

	err := g.store.RecordUsage(ctx, &store.UsageRecord{
		WorkspaceID: workspaceID,
		AgentID:     agentID,
		Provider:    provider.Name(),
		Model:       response.Model,
		Tokens:      response.Usage.TotalTokens,
		Cost:        cost,
	})
	if err != nil {
		logger.Error("failed to record AI usage",
			"workspace", workspaceID, "provider", provider.Name(), "error", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := g.store.IncrementDailyMetric(ctx, workspaceID, today, provider.Name()); err != nil {
		logger.Error("failed to increment daily metric",
			"workspace", workspaceID, "provider", provider.Name(), "error", err)
	}

	g.metrics.ObserveAICall(workspaceID, provider.Name(), response.Usage.TotalTokens, cost)
}
