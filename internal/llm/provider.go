package llm

import (
	"context"
	"fmt"

	"github.com/Fumiaki0604/reqflow/internal/config"
)

// Provider defines the interface for LLM text generation.
type Provider interface {
	// Complete generates free-form text for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteJSON generates text constrained to JSON output. The schema is
	// a soft contract: providers pass it to the model where supported, but
	// callers must still parse the result defensively.
	CompleteJSON(ctx context.Context, prompt string, schema *Schema) (string, error)
	Close() error
}

// Schema is a provider-neutral description of the requested output shape.
type Schema struct {
	Type       string // "ARRAY", "OBJECT", "STRING"
	Items      *Schema
	Properties map[string]*Schema
	Required   []string
}

// NewProvider creates a provider based on config
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key not configured")
	}
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(cfg.APIKey, cfg.Model)
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
