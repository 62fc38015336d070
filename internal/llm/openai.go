package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider against the OpenAI chat completions
// API or any OpenAI-compatible gateway.
type OpenAIProvider struct {
	client *openai.Client
	config *Config
}

// NewOpenAIProvider creates an OpenAI-backed provider
func NewOpenAIProvider(config *Config, apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Complete runs one structured chat completion. The system message carries
// the static prefix and the user message the variable suffix, preserving
// prompt-cache friendliness on the provider side.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := p.config.GetModel(req.Tier)
	if model == "" {
		return nil, fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.1, // low temperature for consistent scoring
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrefix},
			{Role: openai.ChatMessageRoleUser, Content: req.UserSuffix},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Message: "no choices in response"}
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if details := resp.Usage.PromptTokensDetails; details != nil {
		usage.CachedPromptTokens = details.CachedTokens
		usage.PromptCacheHit = details.CachedTokens > 0
	}

	return &Response{
		Text:  CleanJSONBlock(resp.Choices[0].Message.Content),
		Model: resp.Model,
		Usage: usage,
	}, nil
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Close releases provider resources
func (p *OpenAIProvider) Close() error {
	return nil
}

// classifyOpenAIError maps API errors onto the pipeline's error taxonomy.
// Rate limits, server errors, and transport failures are transient; anything
// else (bad request, auth) is surfaced as-is since retrying cannot help.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &UpstreamUnavailableError{
				Provider: ProviderOpenAI,
				Message:  fmt.Sprintf("HTTP %d", apiErr.HTTPStatusCode),
				Cause:    err,
			}
		default:
			return fmt.Errorf("openai request failed: %w", err)
		}
	}
	// Non-API errors are transport-level: DNS, timeouts, connection resets.
	return &UpstreamUnavailableError{
		Provider: ProviderOpenAI,
		Message:  "transport failure",
		Cause:    err,
	}
}
