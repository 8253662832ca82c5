// handlers.go - HTTP handlers for the extraction endpoint

package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pakorn/invoice_extract_ai/configs"
	"github.com/pakorn/invoice_extract_ai/internal/common"
	"github.com/pakorn/invoice_extract_ai/internal/invoice"
	"github.com/pakorn/invoice_extract_ai/internal/storage"
)

// InvoiceExtractor is the pipeline surface the HTTP layer consumes.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, encodedImage string) (*invoice.Record, error)
	Ready() bool
}

// Handler holds the extraction pipeline and its HTTP-side collaborators.
type Handler struct {
	pipeline  InvoiceExtractor
	cache     *storage.ResultCache
	persist   bool
	startedAt time.Time
}

// NewHandler wires the handler. cache may be nil to disable result
// caching; persist controls best-effort MongoDB writes.
func NewHandler(pipeline InvoiceExtractor, cache *storage.ResultCache, persist bool) *Handler {
	return &Handler{
		pipeline:  pipeline,
		cache:     cache,
		persist:   persist,
		startedAt: time.Now(),
	}
}

type extractRequest struct {
	Image string `json:"image"`
}

// ExtractInvoice handles POST /api/v1/extract-invoice.
func (h *Handler) ExtractInvoice(c *gin.Context) {
	requestID := uuid.New().String()
	started := time.Now()

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"kind":    common.ErrInput,
			"message": "No image provided",
		})
		return
	}

	cacheKey := storage.HashPayload(req.Image)
	if h.cache != nil {
		if rec := h.cache.Get(cacheKey); rec != nil {
			log.Printf("[%s] cache hit, skipping pipeline", requestID)
			c.JSON(http.StatusOK, gin.H{"status": "success", "data": rec})
			return
		}
	}

	rec, err := h.pipeline.ExtractInvoice(c.Request.Context(), req.Image)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.cache != nil {
		h.cache.Put(cacheKey, rec)
	}
	if h.persist {
		doc := storage.ExtractionDocument{
			RequestID:   requestID,
			PayloadHash: cacheKey,
			Record:      *rec,
			DurationMS:  time.Since(started).Milliseconds(),
		}
		// Persistence must never fail the request
		go func() {
			if err := storage.SaveExtraction(context.Background(), doc); err != nil {
				log.Printf("[%s] WARN failed to persist extraction: %v", requestID, err)
			}
		}()
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": rec})
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses; the
// kind travels with the response so clients can distinguish failures.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := common.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case common.ErrInput:
		status = http.StatusBadRequest
	case common.ErrImageProcessing:
		status = http.StatusBadRequest
	case common.ErrRecognition:
		status = http.StatusUnprocessableEntity
	case common.ErrExtractionParse:
		status = http.StatusUnprocessableEntity
	case common.ErrEngineNotReady:
		status = http.StatusServiceUnavailable
	case common.ErrUpstream:
		status = http.StatusBadGateway
	}

	body := gin.H{
		"status":  "error",
		"kind":    kind,
		"message": err.Error(),
	}

	var pe *common.PipelineError
	if common.IsKind(err, common.ErrExtractionParse) {
		if e, ok := err.(*common.PipelineError); ok {
			pe = e
		}
		if pe != nil && len(pe.Violations) > 0 {
			body["violations"] = pe.Violations
		}
	}

	c.JSON(status, body)
}

// ListExtractions handles GET /api/v1/extractions, returning the latest
// persisted results. Only registered when persistence is enabled.
func (h *Handler) ListExtractions(c *gin.Context) {
	limit := int64(20)
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	docs, err := storage.RecentExtractions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "failed to load extraction history",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"count":  len(docs),
		"data":   docs,
	})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !h.pipeline.Ready() {
		status = "starting"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":         status,
		"service":        "invoice-extract-ai",
		"version":        "1.0.0",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// CORSMiddleware applies the configured allowed origins.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", configs.ALLOWED_ORIGINS)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
