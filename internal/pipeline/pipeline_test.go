package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pakorn/invoice_extract_ai/internal/ai"
	"github.com/pakorn/invoice_extract_ai/internal/common"
	"github.com/pakorn/invoice_extract_ai/internal/extract"
	"github.com/pakorn/invoice_extract_ai/internal/processor"
)

const stubLLMResponse = `{
  "invoiceNumber": "100",
  "invoiceDate": "2024-01-10",
  "dueDate": null,
  "vendor": {"name": "Acme Corp", "address": null, "taxId": null, "email": null, "phone": null},
  "customer": {"name": "Beta LLC", "address": null, "taxId": null, "email": null, "phone": null},
  "subtotal": 50.00,
  "taxAmount": null,
  "taxRate": null,
  "discount": null,
  "total": 50.00,
  "currency": "USD",
  "items": [],
  "paymentTerms": null,
  "notes": null,
  "paymentStatus": null
}`

type stubRecognizer struct {
	mu     sync.Mutex
	ready  bool
	text   string
	err    error
	closed bool
	calls  int
}

func (s *stubRecognizer) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	return nil
}

func (s *stubRecognizer) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *stubRecognizer) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if !s.ready {
		return "", common.NewError(common.ErrEngineNotReady, "not initialized", nil)
	}
	return s.text, s.err
}

func (s *stubRecognizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.closed = true
	return nil
}

type stubProvider struct {
	response string
	errs     []error // consumed per call; nil entry means success
	calls    int
}

func (s *stubProvider) Complete(ctx context.Context, prompt string, opts ai.Options) (string, *common.TokenUsage, error) {
	s.calls++
	if len(s.errs) >= s.calls && s.errs[s.calls-1] != nil {
		return "", nil, s.errs[s.calls-1]
	}
	return s.response, &common.TokenUsage{TotalTokens: 10}, nil
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Close() error { return nil }

func validPayload() string {
	return base64.StdEncoding.EncodeToString([]byte("raw image bytes"))
}

// newTestPipeline wires the real extractor over stubbed OCR and LLM, with
// normalization stubbed to a fixed buffer.
func newTestPipeline(rec *stubRecognizer, provider *stubProvider, cfg Config) *Pipeline {
	extractor := extract.New(provider, nil, 4096)
	p := New(rec, extractor, cfg)
	p.normalize = func([]byte) ([]byte, error) {
		return []byte("normalized"), nil
	}
	return p
}

func TestExtractInvoiceEndToEnd(t *testing.T) {
	rec := &stubRecognizer{text: "Invoice 100, Total 50.00 USD"}
	provider := &stubProvider{response: stubLLMResponse}
	p := newTestPipeline(rec, provider, Config{
		Confidence: processor.FixedConfidence(0.88),
	})

	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	defer p.Close()

	got, err := p.ExtractInvoice(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("ExtractInvoice: %v", err)
	}

	if got.InvoiceNumber != "100" {
		t.Errorf("InvoiceNumber = %q, want %q", got.InvoiceNumber, "100")
	}
	if got.Total != 50.00 {
		t.Errorf("Total = %v, want 50.00", got.Total)
	}
	if got.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", got.Currency)
	}
	if got.Confidence != 0.88 {
		t.Errorf("Confidence = %v, want the configured constant 0.88", got.Confidence)
	}
	if got.ExtractedAt.IsZero() {
		t.Error("ExtractedAt must be stamped")
	}
	if got.ExtractedAt.Location() != time.UTC {
		t.Error("ExtractedAt must be UTC")
	}
}

func TestExtractInvoiceBeforeWarm(t *testing.T) {
	p := newTestPipeline(&stubRecognizer{}, &stubProvider{response: stubLLMResponse}, Config{})

	_, err := p.ExtractInvoice(context.Background(), validPayload())
	if common.KindOf(err) != common.ErrEngineNotReady {
		t.Fatalf("kind = %s, want %s (no lazy initialization)", common.KindOf(err), common.ErrEngineNotReady)
	}
}

func TestExtractInvoiceIdempotent(t *testing.T) {
	rec := &stubRecognizer{text: "Invoice 100, Total 50.00 USD"}
	provider := &stubProvider{response: stubLLMResponse}
	p := newTestPipeline(rec, provider, Config{})
	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	defer p.Close()

	first, err := p.ExtractInvoice(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := p.ExtractInvoice(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	a, b := *first, *second
	a.ExtractedAt, b.ExtractedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("records differ beyond ExtractedAt:\n%+v\n%+v", a, b)
	}
}

func TestExtractInvoiceStageErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		rec      *stubRecognizer
		provider *stubProvider
		wantKind common.ErrorKind
	}{
		{
			name:     "bad payload",
			payload:  "!!!",
			rec:      &stubRecognizer{text: "x"},
			provider: &stubProvider{response: stubLLMResponse},
			wantKind: common.ErrInput,
		},
		{
			name:    "recognition failure",
			payload: validPayload(),
			rec: &stubRecognizer{
				err: common.NewError(common.ErrRecognition, "all recognition passes failed", nil),
			},
			provider: &stubProvider{response: stubLLMResponse},
			wantKind: common.ErrRecognition,
		},
		{
			name:     "parse failure",
			payload:  validPayload(),
			rec:      &stubRecognizer{text: "x"},
			provider: &stubProvider{response: "not json at all"},
			wantKind: common.ErrExtractionParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(tt.rec, tt.provider, Config{})
			if err := p.Warm(); err != nil {
				t.Fatalf("Warm: %v", err)
			}
			defer p.Close()

			rec, err := p.ExtractInvoice(context.Background(), tt.payload)
			if rec != nil {
				t.Error("no partial record may be returned on failure")
			}
			if common.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %s, want %s", common.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestExtractInvoiceRetriesRetryableUpstream(t *testing.T) {
	retryable := common.NewError(common.ErrUpstream, "llm failed",
		&ai.UpstreamError{Category: "server_error", StatusCode: 503, Retryable: true})

	rec := &stubRecognizer{text: "some text"}
	provider := &stubProvider{
		response: stubLLMResponse,
		errs:     []error{retryable, nil},
	}
	p := newTestPipeline(rec, provider, Config{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	})
	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	defer p.Close()

	got, err := p.ExtractInvoice(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
	if got.InvoiceNumber != "100" {
		t.Errorf("InvoiceNumber = %q", got.InvoiceNumber)
	}
}

func TestExtractInvoiceDoesNotRetryParseErrors(t *testing.T) {
	rec := &stubRecognizer{text: "some text"}
	provider := &stubProvider{response: "garbage"}
	p := newTestPipeline(rec, provider, Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})
	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	defer p.Close()

	_, err := p.ExtractInvoice(context.Background(), validPayload())
	if common.KindOf(err) != common.ErrExtractionParse {
		t.Fatalf("kind = %s", common.KindOf(err))
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, parse errors must not be retried", provider.calls)
	}
}

func TestCloseRefusesNewCallsAndReleasesEngines(t *testing.T) {
	rec := &stubRecognizer{text: "x"}
	p := newTestPipeline(rec, &stubProvider{response: stubLLMResponse}, Config{})
	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rec.closed {
		t.Error("Close must release the recognition engines")
	}

	_, err := p.ExtractInvoice(context.Background(), validPayload())
	if common.KindOf(err) != common.ErrEngineNotReady {
		t.Errorf("kind = %s, want %s", common.KindOf(err), common.ErrEngineNotReady)
	}

	// Close twice is safe
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestConcurrentExtractions(t *testing.T) {
	rec := &stubRecognizer{text: "Invoice 100, Total 50.00 USD"}
	p := newTestPipeline(rec, &stubProvider{response: stubLLMResponse}, Config{})
	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	defer p.Close()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.ExtractInvoice(context.Background(), validPayload())
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		t.Fatalf("concurrent calls failed: %v", err)
	}
	if rec.calls != 8 {
		t.Errorf("recognizer calls = %d, want 8", rec.calls)
	}
}

func TestWeightedConfidenceWiring(t *testing.T) {
	rec := &stubRecognizer{text: "text"}
	p := newTestPipeline(rec, &stubProvider{response: stubLLMResponse}, Config{
		Confidence: processor.WeightedConfidence(processor.DefaultWeights),
	})
	if err := p.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	defer p.Close()

	got, err := p.ExtractInvoice(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("ExtractInvoice: %v", err)
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Errorf("Confidence = %v, want (0,1]", got.Confidence)
	}
}
