// interface.go - LLM provider interface for supporting multiple AI backends

package ai

import (
	"context"

	"github.com/pakorn/invoice_extract_ai/internal/common"
)

// Options controls sampling and output limits for one completion call.
// The extraction pipeline pins Temperature to 0 to bias toward
// reproducible output.
type Options struct {
	Temperature     float32
	MaxOutputTokens int32
}

// Provider is the interface every LLM backend must implement. A provider
// is a long-lived resource: constructed once, safe for concurrent
// Complete calls, released with Close.
type Provider interface {
	// Complete sends the prompt and returns the model's raw text
	// response plus token usage.
	Complete(ctx context.Context, prompt string, opts Options) (string, *common.TokenUsage, error)

	// Name returns the provider name (e.g. "gemini", "openai").
	Name() string

	// Close releases the underlying client.
	Close() error
}
