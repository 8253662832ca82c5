// extractor.go - LLM-driven structured extraction from recognized text

package extract

import (
	"context"

	"github.com/pakorn/invoice_extract_ai/internal/ai"
	"github.com/pakorn/invoice_extract_ai/internal/common"
	"github.com/pakorn/invoice_extract_ai/internal/invoice"
	"github.com/pakorn/invoice_extract_ai/internal/ratelimit"
)

// Extractor turns recognized invoice text into a validated record via one
// LLM call. Sampling is pinned to temperature 0 so repeated extractions of
// the same text stay reproducible. The extractor itself never retries;
// retry policy belongs to the orchestrator.
type Extractor struct {
	provider ai.Provider
	limiter  *ratelimit.RateLimiter
	opts     ai.Options
}

// New creates an extractor on top of the given provider. limiter may be
// nil when no request throttling is wanted (tests).
func New(provider ai.Provider, limiter *ratelimit.RateLimiter, maxOutputTokens int32) *Extractor {
	return &Extractor{
		provider: provider,
		limiter:  limiter,
		opts: ai.Options{
			Temperature:     0,
			MaxOutputTokens: maxOutputTokens,
		},
	}
}

// Extract prompts the model with the recognized text and parses the
// response against the invoice schema. The returned record carries no
// confidence or timestamp yet.
func (e *Extractor) Extract(ctx context.Context, text string) (*invoice.Record, *common.TokenUsage, error) {
	prompt := BuildPrompt(text)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, nil, common.NewError(common.ErrUpstream,
				"canceled while waiting for LLM rate limit", err)
		}
	}

	raw, usage, err := e.provider.Complete(ctx, prompt, e.opts)
	if err != nil {
		return nil, usage, err
	}

	rec, err := ParseRecord(raw)
	if err != nil {
		return nil, usage, err
	}
	return rec, usage, nil
}
