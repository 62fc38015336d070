// Package llm provides the provider abstraction over upstream LLM APIs.
// The analysis pipeline sees only Complete(prefix, suffix, schema); the
// provider's wire protocol stays behind this package.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: classification, basic summarization
	TierLite ModelTier = "lite"
	// TierStandard is for structured rubric scoring
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex multi-step reasoning
	TierAdvanced ModelTier = "advanced"
)

// Provider name constants
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the model configuration for the pipeline
type Config struct {
	Provider string
	BaseURL  string // optional OpenAI-compatible gateway override
	Models   map[ModelTier]string
}

// DefaultConfig returns the default provider configuration
func DefaultConfig() *Config {
	return DefaultOpenAIConfig()
}

// DefaultOpenAIConfig returns the default OpenAI model mapping
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o",
			TierAdvanced: "o3-mini",
		},
	}
}

// DefaultGeminiConfig returns the default Gemini model mapping
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier, falling back through
// standard then lite when the tier is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		BaseURL:  c.BaseURL,
		Models:   make(map[ModelTier]string, len(c.Models)+1),
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
