package llm

import (
	"context"
	"time"
)

// AbstainSentinel is the exact text a generator returns when the snippets
// do not support an answer
const AbstainSentinel = "ABSTAIN_UNVERIFIED"

// Provider generates a narrative from a grounded prompt
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces narrative text for the prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for narrative generation
type GenerateRequest struct {
	Prompt *Prompt

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the generated narrative
type GenerateResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "extractive"
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout bounds a single provider HTTP call
	Timeout time.Duration

	MaxTokens   int
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "extractive",
		Timeout:   30 * time.Second,
		MaxTokens: 1000,
	}
}

func (c Config) maxTokens(override int) int {
	if override > 0 {
		return override
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func (c Config) model(override, fallback string) string {
	if override != "" {
		return override
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
