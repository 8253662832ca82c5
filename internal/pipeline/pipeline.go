// pipeline.go - Extraction pipeline orchestrator

package pipeline

import (
	"context"
	"time"

	"github.com/pakorn/invoice_extract_ai/internal/ai"
	"github.com/pakorn/invoice_extract_ai/internal/common"
	"github.com/pakorn/invoice_extract_ai/internal/invoice"
	"github.com/pakorn/invoice_extract_ai/internal/processor"
)

// Recognizer is the recognition engine surface the orchestrator needs.
// *ocr.Manager implements it; tests substitute fakes.
type Recognizer interface {
	Init() error
	Ready() bool
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
	Close() error
}

// TextExtractor is the structured extraction stage.
// *extract.Extractor implements it.
type TextExtractor interface {
	Extract(ctx context.Context, text string) (*invoice.Record, *common.TokenUsage, error)
}

// Config tunes the orchestrator. The zero value gets sensible defaults
// from New.
type Config struct {
	// Languages requested per recognition call; empty means every
	// language the engine manager was built with.
	Languages []string
	// Timeout bounds one ExtractInvoice call end to end; 0 disables it.
	Timeout time.Duration
	// MaxAttempts for the LLM call; 1 disables retry. Only failures the
	// upstream categorization marks retryable are attempted again.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Confidence is the pluggable scoring policy stamped on success.
	Confidence processor.ScoreFunc
}

// Pipeline sequences normalization, recognition and structured extraction
// and owns the recognition engines' lifecycle. Calls run concurrently and
// independently; the engines are the only shared state.
type Pipeline struct {
	cfg       Config
	engines   Recognizer
	extractor TextExtractor

	// decode/normalize are indirected for tests
	decode    func(string) ([]byte, error)
	normalize func([]byte) ([]byte, error)

	inflight *drainGroup
}

// New builds a pipeline. Warm must be called before the first
// ExtractInvoice is accepted.
func New(engines Recognizer, extractor TextExtractor, cfg Config) *Pipeline {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * time.Second
	}
	if cfg.Confidence == nil {
		cfg.Confidence = processor.FixedConfidence(0.95)
	}
	return &Pipeline{
		cfg:       cfg,
		engines:   engines,
		extractor: extractor,
		decode:    processor.DecodeImagePayload,
		normalize: processor.Normalize,
		inflight:  newDrainGroup(),
	}
}

// Warm initializes the recognition engines. ExtractInvoice refuses calls
// with EngineNotReady until Warm succeeds; there is no lazy
// initialization on demand.
func (p *Pipeline) Warm() error {
	return p.engines.Init()
}

// Ready reports whether the pipeline is accepting extraction calls.
func (p *Pipeline) Ready() bool {
	return p.engines.Ready() && !p.inflight.closing()
}

// ExtractInvoice runs the full pipeline on one encoded image. Stages
// execute strictly in order, each stage's output is the next stage's sole
// input, and the first failure is surfaced unchanged; no partial record is
// ever returned.
func (p *Pipeline) ExtractInvoice(ctx context.Context, encodedImage string) (*invoice.Record, error) {
	if !p.inflight.enter() {
		return nil, common.NewError(common.ErrEngineNotReady,
			"pipeline is shutting down", nil)
	}
	defer p.inflight.leave()

	if !p.engines.Ready() {
		return nil, common.NewError(common.ErrEngineNotReady,
			"recognition engines are not initialized; call Warm first", nil)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	reqCtx := common.NewRequestContext()

	reqCtx.StartStep("normalize_image")
	raw, err := p.decode(encodedImage)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	normalized, err := p.normalize(raw)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	reqCtx.EndStep("success", nil, nil)

	reqCtx.StartStep("recognize_text")
	text, err := p.engines.Recognize(ctx, normalized, p.cfg.Languages)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	reqCtx.EndStep("success", nil, nil)

	reqCtx.StartStep("structured_extraction")
	rec, usage, err := p.extractWithRetry(ctx, text, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", usage, err)
		return nil, err
	}
	reqCtx.EndStep("success", usage, nil)

	// Capture time the moment parsing succeeds
	rec.ExtractedAt = time.Now().UTC()
	rec.Confidence = clamp01(p.cfg.Confidence(text, rec))

	reqCtx.GetSummary()
	return rec, nil
}

// extractWithRetry applies the configured retry policy around the LLM
// stage. Parse failures and other non-retryable errors abort immediately;
// the stage itself performs no retries of its own.
func (p *Pipeline) extractWithRetry(ctx context.Context, text string, reqCtx *common.RequestContext) (*invoice.Record, *common.TokenUsage, error) {
	var total common.TokenUsage
	var lastErr error

	delay := p.cfg.InitialBackoff
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			reqCtx.LogInfo("retry attempt %d/%d", attempt, p.cfg.MaxAttempts)
		}

		rec, usage, err := p.extractor.Extract(ctx, text)
		if usage != nil {
			total.InputTokens += usage.InputTokens
			total.OutputTokens += usage.OutputTokens
			total.TotalTokens += usage.TotalTokens
			total.CostUSD += usage.CostUSD
		}
		if err == nil {
			return rec, &total, nil
		}
		lastErr = err

		if attempt >= p.cfg.MaxAttempts || !ai.Retryable(err) {
			break
		}

		reqCtx.LogWarning("LLM call failed, waiting %v before retry: %v", delay, err)
		select {
		case <-ctx.Done():
			return nil, &total, common.NewError(common.ErrUpstream,
				"canceled during retry wait", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.cfg.MaxBackoff {
			delay = p.cfg.MaxBackoff
		}
	}

	return nil, &total, lastErr
}

// Close stops accepting new calls, waits for in-flight extractions to
// drain, then releases the recognition engines. Releasing an engine while
// a recognition pass is using it is undefined, so the drain is mandatory.
// Safe to call after a partially failed Warm, and safe to call twice.
func (p *Pipeline) Close() error {
	p.inflight.closeAndWait()
	return p.engines.Close()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
