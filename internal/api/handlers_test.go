package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pakorn/invoice_extract_ai/internal/common"
	"github.com/pakorn/invoice_extract_ai/internal/invoice"
	"github.com/pakorn/invoice_extract_ai/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct {
	record *invoice.Record
	err    error
	ready  bool
	calls  int
}

func (s *stubPipeline) ExtractInvoice(ctx context.Context, encodedImage string) (*invoice.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubPipeline) Ready() bool { return s.ready }

func testRecord() *invoice.Record {
	return &invoice.Record{
		InvoiceNumber: "INV-100",
		InvoiceDate:   "2024-01-10",
		Vendor:        invoice.Party{Name: "Acme Corp"},
		Customer:      invoice.Party{Name: "Beta LLC"},
		Subtotal:      50,
		Total:         50,
		Currency:      "USD",
		Items:         []invoice.LineItem{},
		Confidence:    0.95,
		ExtractedAt:   time.Now().UTC(),
	}
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/extract-invoice", h.ExtractInvoice)
	r.GET("/health", h.Health)
	return r
}

func postExtract(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract-invoice",
		bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body
}

func TestExtractInvoiceSuccess(t *testing.T) {
	pipe := &stubPipeline{record: testRecord(), ready: true}
	r := newTestRouter(NewHandler(pipe, nil, false))

	w := postExtract(t, r, `{"image":"aGVsbG8="}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["status"] != "success" {
		t.Errorf("status field = %v", body["status"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatal("data field missing")
	}
	if data["invoiceNumber"] != "INV-100" {
		t.Errorf("invoiceNumber = %v", data["invoiceNumber"])
	}
	if data["currency"] != "USD" {
		t.Errorf("currency = %v", data["currency"])
	}
}

func TestExtractInvoiceMissingImage(t *testing.T) {
	pipe := &stubPipeline{record: testRecord(), ready: true}
	r := newTestRouter(NewHandler(pipe, nil, false))

	for _, body := range []string{`{}`, `{"image":""}`, `not json`} {
		w := postExtract(t, r, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
	if pipe.calls != 0 {
		t.Errorf("pipeline called %d times on rejected requests", pipe.calls)
	}
}

func TestExtractInvoiceErrorMapping(t *testing.T) {
	tests := []struct {
		kind       common.ErrorKind
		wantStatus int
	}{
		{common.ErrInput, http.StatusBadRequest},
		{common.ErrImageProcessing, http.StatusBadRequest},
		{common.ErrRecognition, http.StatusUnprocessableEntity},
		{common.ErrExtractionParse, http.StatusUnprocessableEntity},
		{common.ErrEngineNotReady, http.StatusServiceUnavailable},
		{common.ErrUpstream, http.StatusBadGateway},
		{common.ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			pipe := &stubPipeline{
				err:   common.NewError(tt.kind, "boom", nil),
				ready: true,
			}
			r := newTestRouter(NewHandler(pipe, nil, false))

			w := postExtract(t, r, `{"image":"aGVsbG8="}`)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeBody(t, w)
			if body["status"] != "error" {
				t.Errorf("status field = %v", body["status"])
			}
			if body["kind"] != string(tt.kind) {
				t.Errorf("kind = %v, want %s", body["kind"], tt.kind)
			}
		})
	}
}

func TestExtractInvoiceParseViolationsExposed(t *testing.T) {
	pipe := &stubPipeline{
		err:   common.NewParseError("invalid model output", "raw llm output", []string{"missing required field: total"}),
		ready: true,
	}
	r := newTestRouter(NewHandler(pipe, nil, false))

	w := postExtract(t, r, `{"image":"aGVsbG8="}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	body := decodeBody(t, w)
	violations, ok := body["violations"].([]any)
	if !ok || len(violations) != 1 {
		t.Fatalf("violations = %v", body["violations"])
	}
	if violations[0] != "missing required field: total" {
		t.Errorf("violation = %v", violations[0])
	}
}

func TestExtractInvoiceCacheHit(t *testing.T) {
	pipe := &stubPipeline{record: testRecord(), ready: true}
	cache := storage.NewResultCache(time.Minute)
	r := newTestRouter(NewHandler(pipe, cache, false))

	first := postExtract(t, r, `{"image":"aGVsbG8="}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: %d", first.Code)
	}
	second := postExtract(t, r, `{"image":"aGVsbG8="}`)
	if second.Code != http.StatusOK {
		t.Fatalf("second request: %d", second.Code)
	}

	if pipe.calls != 1 {
		t.Errorf("pipeline calls = %d, identical payload within TTL must hit the cache", pipe.calls)
	}
	data := decodeBody(t, second)["data"].(map[string]any)
	if data["invoiceNumber"] != "INV-100" {
		t.Errorf("cached invoiceNumber = %v", data["invoiceNumber"])
	}
}

func TestHealth(t *testing.T) {
	pipe := &stubPipeline{ready: true}
	r := newTestRouter(NewHandler(pipe, nil, false))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("ready health status = %d, want 200", w.Code)
	}

	pipe.ready = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unready health status = %d, want 503", w.Code)
	}
	if decodeBody(t, w)["status"] != "starting" {
		t.Error("unready health must report starting")
	}
}
