// request_context.go - Request tracking and logging

package common

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pakorn/invoice_extract_ai/configs"
)

// RequestContext tracks one extraction request: step timings, token usage
// and cost. It is created per request and never shared across requests.
type RequestContext struct {
	RequestID        string
	StartTime        time.Time
	Steps            []StepLog
	TotalTokens      TokenUsage
	CurrentStep      string
	CurrentStepStart time.Time
}

// StepLog records a single pipeline stage.
type StepLog struct {
	Name      string      `json:"name"`
	StartTime time.Time   `json:"start_time"`
	Duration  int64       `json:"duration_ms"`
	Status    string      `json:"status"` // "success" or "failed"
	Tokens    *TokenUsage `json:"tokens,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// TokenUsage tracks LLM token consumption for one call or one request.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// NewRequestContext creates a new request tracking context.
func NewRequestContext() *RequestContext {
	reqID := uuid.New().String()
	return &RequestContext{
		RequestID: reqID,
		StartTime: time.Now(),
		Steps:     []StepLog{},
	}
}

// StartStep begins tracking a pipeline stage.
func (rc *RequestContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()
	log.Printf("[%s] ── %s", rc.RequestID, stepName)
}

// EndStep completes the current stage and records timing.
func (rc *RequestContext) EndStep(status string, tokens *TokenUsage, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
	}

	if err != nil {
		stepLog.Error = err.Error()
		log.Printf("[%s]    failed: %s (%.2fs): %v",
			rc.RequestID, rc.CurrentStep, float64(duration)/1000, err)
	} else {
		msg := fmt.Sprintf("[%s]    done: %.2fs", rc.RequestID, float64(duration)/1000)
		if tokens != nil {
			rc.TotalTokens.InputTokens += tokens.InputTokens
			rc.TotalTokens.OutputTokens += tokens.OutputTokens
			rc.TotalTokens.TotalTokens += tokens.TotalTokens
			rc.TotalTokens.CostUSD += tokens.CostUSD
			msg += fmt.Sprintf(" | tokens: %d in + %d out = %d | $%.4f",
				tokens.InputTokens, tokens.OutputTokens, tokens.TotalTokens, tokens.CostUSD)
		}
		log.Print(msg)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
}

// CalculateTokenCost computes USD cost from token counts using the
// configured per-million pricing.
func CalculateTokenCost(inputTokens, outputTokens int) TokenUsage {
	inputCost := float64(inputTokens) * configs.LLM_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.LLM_OUTPUT_PRICE_PER_MILLION / 1_000_000

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      inputCost + outputCost,
	}
}

// GetSummary returns a summary of the entire request and logs it.
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	log.Printf("[%s] completed in %.2fs | steps: %d | tokens: %d | $%.4f",
		rc.RequestID, float64(totalDuration)/1000, len(rc.Steps),
		rc.TotalTokens.TotalTokens, rc.TotalTokens.CostUSD)

	return map[string]interface{}{
		"request_id":        rc.RequestID,
		"total_duration_ms": totalDuration,
		"step_breakdown":    stepBreakdown,
		"total_steps":       len(rc.Steps),
		"token_usage":       rc.TotalTokens,
	}
}

// LogInfo logs an info-level message with the request ID prefix.
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	log.Printf("[%s] %s", rc.RequestID, fmt.Sprintf(format, args...))
}

// LogWarning logs a warning-level message with the request ID prefix.
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	log.Printf("[%s] WARN %s", rc.RequestID, fmt.Sprintf(format, args...))
}

// LogError logs an error-level message with the request ID prefix.
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	log.Printf("[%s] ERROR %s", rc.RequestID, fmt.Sprintf(format, args...))
}
