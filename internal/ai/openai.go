// openai.go - OpenAI-compatible chat completion provider

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pakorn/invoice_extract_ai/internal/common"
)

// OpenAIProvider implements Provider against the OpenAI chat completions
// API (or any compatible endpoint via the configurable base URL).
type OpenAIProvider struct {
	apiKey    string
	modelName string
	baseURL   string
	client    *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey, modelName, baseURL string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name returns "openai".
func (o *OpenAIProvider) Name() string {
	return "openai"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int32         `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the prompt as a single user message.
func (o *OpenAIProvider) Complete(ctx context.Context, prompt string, opts Options) (string, *common.TokenUsage, error) {
	reqBody := chatRequest{
		Model:       o.modelName,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, wrapUpstream(o.Name(), fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", nil, wrapUpstream(o.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", nil, wrapUpstream(o.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, wrapUpstream(o.Name(), fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		ue := categorizeStatus(&UpstreamError{
			OriginalError: fmt.Errorf("%s", strings.TrimSpace(string(body))),
			Message:       fmt.Sprintf("chat completion returned %d", resp.StatusCode),
		}, resp.StatusCode)
		return "", nil, common.NewError(common.ErrUpstream, "openai completion failed", ue)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, wrapUpstream(o.Name(), fmt.Errorf("decoding response: %w", err))
	}
	if parsed.Error != nil {
		return "", nil, wrapUpstream(o.Name(),
			fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", nil, wrapUpstream(o.Name(), fmt.Errorf("empty response from model"))
	}

	usage := common.CalculateTokenCost(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	return parsed.Choices[0].Message.Content, &usage, nil
}

// Close is a no-op; the HTTP client holds no per-connection state worth
// releasing explicitly.
func (o *OpenAIProvider) Close() error {
	return nil
}
