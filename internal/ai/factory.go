// factory.go - LLM provider factory

package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/pakorn/invoice_extract_ai/configs"
)

// CreateProvider creates an LLM provider based on configuration.
func CreateProvider(ctx context.Context) (Provider, error) {
	switch configs.LLM_PROVIDER {
	case "gemini":
		log.Printf("Creating Gemini provider (model: %s)", configs.MODEL_NAME)
		return NewGeminiProvider(ctx, configs.GEMINI_API_KEY, configs.MODEL_NAME)

	case "openai":
		log.Printf("Creating OpenAI provider (model: %s)", configs.OPENAI_MODEL_NAME)
		return NewOpenAIProvider(configs.OPENAI_API_KEY, configs.OPENAI_MODEL_NAME, configs.OPENAI_BASE_URL), nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: gemini, openai)", configs.LLM_PROVIDER)
	}
}
