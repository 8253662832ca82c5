// gemini.go - Gemini text completion provider

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pakorn/invoice_extract_ai/internal/common"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider using the Gemini API. The client is
// created once and reused; genai clients are safe for concurrent calls.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider creates the long-lived Gemini client.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// Name returns "gemini".
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Complete sends the prompt with the requested sampling options and
// returns the raw text response.
func (g *GeminiProvider) Complete(ctx context.Context, prompt string, opts Options) (string, *common.TokenUsage, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptr(opts.Temperature),
		MaxOutputTokens: ptr(opts.MaxOutputTokens),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", nil, wrapUpstream(g.Name(), err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil, wrapUpstream(g.Name(), fmt.Errorf("empty response from model"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var usage *common.TokenUsage
	if resp.UsageMetadata != nil {
		u := common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount))
		usage = &u
	}

	return text.String(), usage, nil
}

// Close releases the Gemini client.
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func ptr[T any](v T) *T {
	return &v
}
