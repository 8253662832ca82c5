// errors.go - Categorization of upstream LLM service failures

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pakorn/invoice_extract_ai/internal/common"
	"google.golang.org/api/googleapi"
)

// UpstreamError is a categorized failure from the LLM service. The
// category and Retryable flag drive the orchestrator's retry policy; the
// pipeline itself never retries.
type UpstreamError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d, retryable: %v)",
		e.Category, e.Message, e.StatusCode, e.Retryable)
}

func (e *UpstreamError) Unwrap() error {
	return e.OriginalError
}

// categorizeError analyzes a provider error and determines whether a
// retry could help.
func categorizeError(err error) *UpstreamError {
	if err == nil {
		return nil
	}

	ue := &UpstreamError{
		OriginalError: err,
		Category:      "unknown",
		Message:       err.Error(),
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		ue.StatusCode = apiErr.Code
		return categorizeStatus(ue, apiErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		ue.Category = "timeout"
		ue.Message = "request timeout"
		ue.Retryable = true
		return ue
	}
	if errors.Is(err, context.Canceled) {
		ue.Category = "canceled"
		ue.Message = "request was canceled"
		return ue
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"):
		ue.Category = "quota_exceeded"
		ue.Message = "API quota exceeded"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		ue.Category = "timeout"
		ue.Retryable = true
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"):
		ue.Category = "network_error"
		ue.Retryable = true
	}
	return ue
}

// categorizeStatus fills in the category for an HTTP status code, shared
// by the Gemini and OpenAI-compatible providers.
func categorizeStatus(ue *UpstreamError, code int) *UpstreamError {
	ue.StatusCode = code
	switch code {
	case 400:
		ue.Category = "bad_request"
		ue.Message = "invalid request format or parameters"
	case 401:
		ue.Category = "unauthorized"
		ue.Message = "invalid API key or authentication failed"
	case 403:
		ue.Category = "forbidden"
		ue.Message = "API key lacks required permissions"
	case 404:
		ue.Category = "not_found"
		ue.Message = "model not found or invalid endpoint"
	case 413:
		ue.Category = "payload_too_large"
		ue.Message = "request size exceeds limit"
	case 429:
		ue.Category = "rate_limit"
		ue.Message = "rate limit exceeded"
		ue.Retryable = true
	case 500, 502, 503, 504:
		ue.Category = "server_error"
		ue.Message = fmt.Sprintf("LLM server error (%d)", code)
		ue.Retryable = true
	default:
		ue.Category = "unknown_api_error"
		ue.Retryable = code >= 500
	}
	return ue
}

// wrapUpstream converts a provider error into the pipeline's
// UpstreamServiceError kind, preserving the categorization in the chain.
func wrapUpstream(provider string, err error) error {
	ue := categorizeError(err)
	return common.NewError(common.ErrUpstream,
		fmt.Sprintf("%s completion failed", provider), ue)
}

// Retryable reports whether err is an upstream failure a retry could
// resolve. Used by the orchestrator when retry attempts are configured.
func Retryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}
