package llm

import (
	"strings"
	"testing"

	"github.com/Fumiaki0604/reqflow/internal/config"
)

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(&config.LLMConfig{Provider: "gemini"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(&config.LLMConfig{Provider: "llama", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "llama") {
		t.Errorf("error %q should name the provider", err)
	}
}
