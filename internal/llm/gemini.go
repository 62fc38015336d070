package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
	config *Config
}

// NewGeminiProvider creates a Gemini-backed provider
func NewGeminiProvider(ctx context.Context, config *Config, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

// Complete runs one structured generation. The static prefix rides as the
// system instruction so Gemini's implicit context caching can apply to it.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	modelName := p.config.GetModel(req.Tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	model := p.client.GenerativeModel(modelName)
	model.SetTemperature(0.1) // low temperature for consistent scoring
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemPrefix)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserSuffix))
	if err != nil {
		return nil, &UpstreamUnavailableError{
			Provider: ProviderGemini,
			Message:  "generation failed",
			Cause:    err,
		}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.CachedPromptTokens = int(resp.UsageMetadata.CachedContentTokenCount)
		usage.PromptCacheHit = resp.UsageMetadata.CachedContentTokenCount > 0
	}

	return &Response{
		Text:  CleanJSONBlock(text),
		Model: modelName,
		Usage: usage,
	}, nil
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// Close releases resources held by the client
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// extractTextFromResponse pulls the text parts out of a Gemini response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", &MalformedResponseError{Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &MalformedResponseError{Message: "no content in response"}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", &MalformedResponseError{Message: "no text parts in response"}
	}

	return strings.Join(parts, ""), nil
}
