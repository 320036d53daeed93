// Package openai implements the advisory-service collaborator against
// the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/httpx"
)

const (
	defaultBaseURL   = "https://api.openai.com"
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 800
)

// HTTPClient is an HTTP client for the OpenAI chat completions API.
type HTTPClient struct {
	apiKey  string
	model   string
	baseURL string
	retry   httpx.RetryConfig
	client  *http.Client
}

// NewHTTPClient creates a new OpenAI HTTP client.
func NewHTTPClient(apiKey, model string) *HTTPClient {
	return &HTTPClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		retry:   httpx.DefaultRetryConfig(),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *HTTPClient) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the per-call wall-clock timeout.
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRetryConfig overrides the default retry policy.
func (c *HTTPClient) SetRetryConfig(retry httpx.RetryConfig) {
	c.retry = retry
}

// APIResponse is the parsed result of a completed call.
type APIResponse struct {
	Text         string
	TokensIn     int
	TokensOut    int
	Model        string
	FinishReason string
}

// Call sends the system and user messages to the chat completions API,
// retrying retryable failures with exponential backoff.
func (c *HTTPClient) Call(ctx context.Context, systemMsg, userMsg string) (*APIResponse, error) {
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemMsg},
			{Role: "user", Content: userMsg},
		},
		Temperature: 0.2,
		MaxTokens:   defaultMaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"

	var response *APIResponse
	operation := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return httpx.NewTimeoutError("advisory", "request timed out")
			}
			return httpx.NewTimeoutError("advisory", err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return handleErrorResponse(resp.StatusCode, body)
		}

		var chatResp ChatCompletionResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}

		response = &APIResponse{
			Text:         chatResp.Choices[0].Message.Content,
			TokensIn:     chatResp.Usage.PromptTokens,
			TokensOut:    chatResp.Usage.CompletionTokens,
			Model:        chatResp.Model,
			FinishReason: chatResp.Choices[0].FinishReason,
		}
		return nil
	}

	if err := httpx.RetryWithBackoff(ctx, operation, c.retry); err != nil {
		return nil, err
	}
	return response, nil
}

// handleErrorResponse converts HTTP error responses to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	} else if len(body) > 0 && len(body) < 200 {
		message = string(body)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return httpx.NewAuthenticationError("advisory", message)
	case http.StatusTooManyRequests:
		return httpx.NewRateLimitError("advisory", message)
	case http.StatusBadRequest:
		return httpx.NewInvalidRequestError("advisory", message)
	case http.StatusNotFound:
		return httpx.NewNotFoundError("advisory", message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return httpx.NewServiceUnavailableError("advisory", message)
	default:
		return &httpx.Error{
			Type:       httpx.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Service:    "advisory",
		}
	}
}
