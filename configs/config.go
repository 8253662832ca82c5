// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// LLM provider configuration
	LLM_PROVIDER   string // "gemini" or "openai"
	GEMINI_API_KEY string
	MODEL_NAME     string

	OPENAI_API_KEY    string
	OPENAI_MODEL_NAME string
	OPENAI_BASE_URL   string

	// LLM sampling and output limits
	MAX_OUTPUT_TOKENS int // output ceiling for the extraction call

	// LLM pricing configuration (per 1M tokens in USD) for cost accounting
	LLM_INPUT_PRICE_PER_MILLION  float64
	LLM_OUTPUT_PRICE_PER_MILLION float64

	// OCR configuration
	OCR_LANGUAGES []string // tesseract language codes, primary language first

	// Pipeline configuration
	CONFIDENCE_SCORE    float64 // constant stamped on successful extractions
	EXTRACT_TIMEOUT     int     // per-call timeout in seconds
	LLM_MAX_ATTEMPTS    int     // 1 disables retry
	RESULT_CACHE_TTL    int     // seconds an identical payload is served from cache
	LLM_RATE_MAX_TOKENS int     // token bucket size for LLM calls
	LLM_RATE_REFILL_SEC int     // seconds between token refills

	// Server configuration
	PORT            string
	ALLOWED_ORIGINS string

	// MongoDB configuration
	MONGO_URI     string
	MONGO_DB_NAME string
	MONGO_ENABLED bool
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	LLM_PROVIDER = getEnv("LLM_PROVIDER", "gemini")

	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.5-flash")

	OPENAI_API_KEY = getEnv("OPENAI_API_KEY", "")
	OPENAI_MODEL_NAME = getEnv("OPENAI_MODEL_NAME", "gpt-4")
	OPENAI_BASE_URL = getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")

	switch LLM_PROVIDER {
	case "gemini":
		if GEMINI_API_KEY == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required")
		}
	case "openai":
		if OPENAI_API_KEY == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required")
		}
	default:
		log.Fatalf("Unsupported LLM_PROVIDER: %s (supported: gemini, openai)", LLM_PROVIDER)
	}

	MAX_OUTPUT_TOKENS = getEnvInt("MAX_OUTPUT_TOKENS", 4096)

	LLM_INPUT_PRICE_PER_MILLION = getEnvFloat("LLM_INPUT_PRICE_PER_MILLION", 0.10)
	LLM_OUTPUT_PRICE_PER_MILLION = getEnvFloat("LLM_OUTPUT_PRICE_PER_MILLION", 0.40)

	OCR_LANGUAGES = splitLanguages(getEnv("OCR_LANGUAGES", "eng"))

	CONFIDENCE_SCORE = getEnvFloat("CONFIDENCE_SCORE", 0.95)
	EXTRACT_TIMEOUT = getEnvInt("EXTRACT_TIMEOUT", 90)
	LLM_MAX_ATTEMPTS = getEnvInt("LLM_MAX_ATTEMPTS", 1)
	RESULT_CACHE_TTL = getEnvInt("RESULT_CACHE_TTL", 300)
	LLM_RATE_MAX_TOKENS = getEnvInt("LLM_RATE_MAX_TOKENS", 12)
	LLM_RATE_REFILL_SEC = getEnvInt("LLM_RATE_REFILL_SEC", 5)

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")

	MONGO_URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "invoice_ai")
	MONGO_ENABLED = getEnvBool("MONGO_ENABLED", true)

	log.Println("✓ Configuration loaded successfully")
}

// splitLanguages parses a comma separated language list, keeping order.
// The first entry is the primary language used by the OCR merge policy.
func splitLanguages(value string) []string {
	parts := strings.Split(value, ",")
	langs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			langs = append(langs, p)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return langs
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
