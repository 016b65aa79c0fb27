package convex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/FrenchMajesty/pattern-cascade/internal/retry"
)

// Client is a minimal HTTP bridge to a Convex deployment. Convex exposes
// three function kinds over HTTP — queries, mutations and actions — all
// POSTed as {"path": "table:function", "args": {...}, "format": "json"}
// and answered with a {"status", "value", "errorMessage"} envelope.
type Client struct {
	baseURL     string
	HTTPClient  *http.Client
	RetryConfig retry.Config
}

// FunctionError is a Convex-side execution failure (the HTTP call itself
// succeeded)
type FunctionError struct {
	Path    string
	Message string
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("convex function %s failed: %s", e.Path, e.Message)
}

// NewClient creates a client for the given deployment URL
// (e.g. https://your-deployment.convex.cloud)
func NewClient(deploymentURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(deploymentURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		RetryConfig: retry.DefaultConfig(),
	}
}

// Query executes a Convex query function and returns its value
func (c *Client) Query(ctx context.Context, path string, args map[string]any) (gjson.Result, error) {
	return c.call(ctx, "/api/query", path, args)
}

// Mutation executes a Convex mutation function and returns its value
func (c *Client) Mutation(ctx context.Context, path string, args map[string]any) (gjson.Result, error) {
	return c.call(ctx, "/api/mutation", path, args)
}

// Action executes a Convex action function and returns its value. Actions
// are for operations with side effects or external API calls.
func (c *Client) Action(ctx context.Context, path string, args map[string]any) (gjson.Result, error) {
	return c.call(ctx, "/api/action", path, args)
}

func (c *Client) call(ctx context.Context, endpoint, path string, args map[string]any) (gjson.Result, error) {
	payload := []byte(`{"format":"json"}`)
	payload, err := sjson.SetBytes(payload, "path", path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to build convex payload: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	payload, err = sjson.SetBytes(payload, "args", args)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to build convex payload: %w", err)
	}

	body, err := retry.Do(ctx, retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: isRetryable,
		APIName:      "convex",
	}, func(attempt int) ([]byte, int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
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
			return nil, resp.StatusCode, fmt.Errorf("convex returned status %d: %s", resp.StatusCode, respBody)
		}
		return respBody, resp.StatusCode, nil
	})
	if err != nil {
		return gjson.Result{}, err
	}

	if gjson.GetBytes(body, "status").String() == "error" {
		msg := gjson.GetBytes(body, "errorMessage").String()
		if msg == "" {
			msg = "unknown error"
		}
		return gjson.Result{}, &FunctionError{Path: path, Message: msg}
	}

	return gjson.GetBytes(body, "value"), nil
}

// isRetryable retries network errors, server errors and rate limiting
func isRetryable(err error, statusCode int, _ []byte) bool {
	if err != nil {
		return true
	}
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
