package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewClient creates the backend client for the given provider.
// Provider "openai" covers any OpenAI-compatible endpoint (hosted or local);
// "anthropic" uses the Anthropic Messages API.
func NewClient(provider string, cfg *Config, logger *zap.Logger) (Client, error) {
	switch provider {
	case "openai", "":
		return NewOpenAIClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}
