package llm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderConfig names the models a deployment uses. FastModel handles the
// cheap validation/repair calls; Model handles extraction and negotiation.
type ProviderConfig struct {
	Provider       string
	Model          string
	FastModel      string
	EmbeddingModel string
	APIKey         string
	BaseURL        string
}

// NewClient builds the reasoning client and, where the provider supports it,
// an embedder. Claude deployments get a nil embedder: resolution then runs
// lexical-first, which the resolver handles.
func NewClient(ctx context.Context, cfg ProviderConfig) (ToolClient, EmbedderClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.FastModel, cfg.EmbeddingModel, cfg.BaseURL)
		return c, c, nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.FastModel, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case "claude":
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.FastModel, cfg.BaseURL)
		return c, nil, nil

	case "ollama":
		// Ollama exposes an OpenAI-compatible API; reuse that client so
		// tool calls and embeddings work without a dedicated integration.
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		c := NewOpenAIClient(apiKey, cfg.Model, cfg.FastModel, cfg.EmbeddingModel, baseURL)
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
