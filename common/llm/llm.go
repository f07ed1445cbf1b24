package llm

import (
	"context"
	"fmt"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string
	MaxTokens int
}

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (*Generation, error)
	Model() string
}

type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float64 // nil = model default
}

type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// NewGenerator selects the provider named in cfg.Provider. Defaults to OpenAI.
func NewGenerator(cfg Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		return newOpenAIGenerator(cfg), nil
	case ProviderAnthropic:
		return newAnthropicGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func Temp(t float64) *float64 {
	return &t
}
