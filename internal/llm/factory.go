package llm

import (
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
)

// NewProvider creates a provider based on configuration.
// An empty provider name selects the extractive provider.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "", "extractive", "none":
		return NewExtractiveProvider(), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q (supported: openai, anthropic, ollama, extractive)", config.Provider)
	}
}

// ConfigFromModel converts model config into provider config
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Timeout:     llmCfg.Timeout,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}
