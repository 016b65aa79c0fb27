package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/FrenchMajesty/pattern-cascade/internal/retry"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient is a minimal client for the Groq Chat API
type GroqClient struct {
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	RetryConfig retry.Config
}

// NewGroqClient creates a new GroqClient
func NewGroqClient(apiKey string) *GroqClient {
	return &GroqClient{
		APIKey:      apiKey,
		BaseURL:     groqBaseURL,
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.DefaultConfig(),
	}
}

// ChatCompletion sends a chat completion request with retry logic
func (c *GroqClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	url := c.BaseURL + "/chat/completions"

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat completion request: %w", err)
	}

	body, err := retry.Do(ctx, retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: c.isRetryableError,
		APIName:      "groq",
	}, func(attempt int) ([]byte, int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, 0, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, 0, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			// Retryable; the checker re-inspects the status code
			return respBody, resp.StatusCode, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resp.StatusCode, &ChatCompletionError{
				Message:    fmt.Sprintf("groq returned status %d", resp.StatusCode),
				StatusCode: resp.StatusCode,
				RawBody:    json.RawMessage(respBody),
			}
		}
		return respBody, resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &ChatCompletionError{
			Message: fmt.Sprintf("failed to parse chat completion response: %v", err),
			RawBody: json.RawMessage(body),
		}
	}

	return &chatResp, nil
}

// isRetryableError retries network errors, server errors and rate limiting
func (c *GroqClient) isRetryableError(err error, statusCode int, _ []byte) bool {
	if err != nil {
		return true
	}
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
