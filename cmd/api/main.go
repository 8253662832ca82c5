// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pakorn/invoice_extract_ai/configs"
	"github.com/pakorn/invoice_extract_ai/internal/ai"
	"github.com/pakorn/invoice_extract_ai/internal/api"
	"github.com/pakorn/invoice_extract_ai/internal/extract"
	"github.com/pakorn/invoice_extract_ai/internal/ocr"
	"github.com/pakorn/invoice_extract_ai/internal/pipeline"
	"github.com/pakorn/invoice_extract_ai/internal/processor"
	"github.com/pakorn/invoice_extract_ai/internal/ratelimit"
	"github.com/pakorn/invoice_extract_ai/internal/storage"
)

func main() {
	configs.LoadConfig()

	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if configs.MONGO_ENABLED {
		if err := storage.InitMongoDB(); err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer storage.CloseMongoDB()
	}

	ctx := context.Background()

	provider, err := ai.CreateProvider(ctx)
	if err != nil {
		log.Fatalf("Failed to create LLM provider: %v", err)
	}
	defer provider.Close()

	limiter := ratelimit.NewRateLimiter(
		configs.LLM_RATE_MAX_TOKENS,
		time.Duration(configs.LLM_RATE_REFILL_SEC)*time.Second)
	extractor := extract.New(provider, limiter, int32(configs.MAX_OUTPUT_TOKENS))

	engines := ocr.NewManager(configs.OCR_LANGUAGES)

	pipe := pipeline.New(engines, extractor, pipeline.Config{
		Languages:   configs.OCR_LANGUAGES,
		Timeout:     time.Duration(configs.EXTRACT_TIMEOUT) * time.Second,
		MaxAttempts: configs.LLM_MAX_ATTEMPTS,
		Confidence:  processor.FixedConfidence(configs.CONFIDENCE_SCORE),
	})

	// Engines must be warm before the first extraction is accepted
	log.Printf("Initializing OCR engines for languages: %v", configs.OCR_LANGUAGES)
	if err := pipe.Warm(); err != nil {
		log.Fatalf("Failed to initialize OCR engines: %v", err)
	}
	defer pipe.Close()

	cache := storage.NewResultCache(time.Duration(configs.RESULT_CACHE_TTL) * time.Second)
	handler := api.NewHandler(pipe, cache, configs.MONGO_ENABLED)

	router := gin.Default()
	router.Use(api.CORSMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/health", handler.Health)
	router.POST("/api/v1/extract-invoice", handler.ExtractInvoice)
	if configs.MONGO_ENABLED {
		router.GET("/api/v1/extractions", handler.ListExtractions)
	}

	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   3 * time.Minute, // OCR plus the LLM call can take a while
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting server on :%s", configs.PORT)
		log.Println("API Endpoints:")
		log.Println("  POST /api/v1/extract-invoice")
		log.Println("  GET  /health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Deferred pipe.Close drains in-flight extractions before the OCR
	// engines are released
	log.Println("Server exited")
}
