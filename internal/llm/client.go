package llm

import (
	"context"
	"fmt"
)

// Request carries one structured completion call. SystemPrefix holds the
// static rubric and methodology content and UserSuffix the per-chunk
// transcript plus output-format instructions. The static-before-variable
// ordering is a performance invariant: providers cache prompt prefixes, and
// inverting the order defeats that caching entirely.
type Request struct {
	SystemPrefix string
	UserSuffix   string
	OutputSchema string // JSON Schema the response must satisfy
	Tier         ModelTier
}

// Usage reports token accounting for one completion, including the
// provider's prompt-cache signal used for cost telemetry.
type Usage struct {
	PromptTokens       int
	CompletionTokens   int
	CachedPromptTokens int
	PromptCacheHit     bool
}

// Response is a structured completion result
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider is the single outbound contract to an LLM. Implementations must
// return *UpstreamUnavailableError for transport/rate-limit failures so
// callers can distinguish retryable faults.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
	Close() error
}

// NewProvider constructs a provider from configuration. Clients are built
// once at process start and passed into the orchestrator explicitly.
func NewProvider(ctx context.Context, config *Config, apiKey string) (Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiProvider(ctx, config, apiKey)
	case ProviderOpenAI, "":
		return NewOpenAIProvider(config, apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", config.Provider)
	}
}
