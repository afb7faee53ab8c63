package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIProvider(t *testing.T) {
	provider := NewOpenAIProvider("sk-test-key", "")

	if provider == nil {
		t.Fatal("NewOpenAIProvider() returned nil provider")
	}
	if provider.Name() != "openai" {
		t.Errorf("Name() = %v, want openai", provider.Name())
	}
	if provider.host != openAIDefaultHost {
		t.Errorf("host = %v, want %v", provider.host, openAIDefaultHost)
	}
}

func TestOpenAIProviderCall(t *testing.T) {
	var gotRequest chatRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %v", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		response := map[string]interface{}{
			"model": "gpt-4-0613",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Hello there"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider := NewOpenAIProvider("sk-test-key", server.URL)
	response, err := provider.Call(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Hi"},
	}, CallOptions{Model: "gpt-4", Temperature: 0.3, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if gotAuth != "Bearer sk-test-key" {
		t.Errorf("Authorization = %v, want Bearer sk-test-key", gotAuth)
	}
	if gotRequest.Model != "gpt-4" {
		t.Errorf("request model = %v, want gpt-4", gotRequest.Model)
	}
	if len(gotRequest.Messages) != 2 {
		t.Errorf("request messages = %d, want 2", len(gotRequest.Messages))
	}
	if response.Content != "Hello there" {
		t.Errorf("Content = %v, want Hello there", response.Content)
	}
	if response.Model != "gpt-4-0613" {
		t.Errorf("Model = %v, want gpt-4-0613 (as reported by the backend)", response.Model)
	}
	if response.Usage.TotalTokens != 20 {
		t.Errorf("TotalTokens = %v, want 20", response.Usage.TotalTokens)
	}
	if response.Provider != "openai" {
		t.Errorf("Provider = %v, want openai", response.Provider)
	}
}

func TestOpenAIProviderCallDefaults(t *testing.T) {
	var gotRequest chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   openAIDefaultModel,
			"choices": []map[string]interface{}{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("sk-test-key", server.URL)
	_, err := provider.Call(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}}, CallOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if gotRequest.Model != openAIDefaultModel {
		t.Errorf("default model = %v, want %v", gotRequest.Model, openAIDefaultModel)
	}
	if gotRequest.Temperature != 0.7 {
		t.Errorf("default temperature = %v, want 0.7", gotRequest.Temperature)
	}
	if gotRequest.MaxTokens != 2000 {
		t.Errorf("default max tokens = %v, want 2000", gotRequest.MaxTokens)
	}
}

func TestOpenAIProviderCallAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "Incorrect API key provided", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("sk-bad-key", server.URL)
	_, err := provider.Call(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}}, CallOptions{})
	if err == nil {
		t.Fatal("Call() expected error for API error response")
	}
}

func TestOpenAIProviderValidateKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %v", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "Bearer sk-good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewOpenAIProvider("", server.URL)
	if !provider.ValidateKey(context.Background(), "sk-good") {
		t.Error("ValidateKey() = false for valid key")
	}
	if provider.ValidateKey(context.Background(), "sk-bad") {
		t.Error("ValidateKey() = true for invalid key")
	}
}

func TestOpenAIProviderEstimateCost(t *testing.T) {
	provider := NewOpenAIProvider("sk-test-key", "")

	tests := []struct {
		model  string
		tokens int
		want   float64
	}{
		{"gpt-4", 1000, 0.03},
		{"gpt-4-turbo", 2000, 0.02},
		{"gpt-3.5-turbo", 1000, 0.0015},
		// Unknown models price at the default model's rate.
		{"some-future-model", 1000, 0.0015},
		{"gpt-4", 0, 0},
	}

	for _, tt := range tests {
		got := provider.EstimateCost(tt.tokens, tt.model)
		if got != tt.want {
			t.Errorf("EstimateCost(%d, %q) = %v, want %v", tt.tokens, tt.model, got, tt.want)
		}
	}
}
