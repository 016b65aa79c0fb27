package convex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FrenchMajesty/pattern-cascade/internal/retry"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries:      2,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

// TestQuerySuccess tests the request shape and envelope unwrapping
func TestQuerySuccess(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write([]byte(`{"status":"success","value":{"count":3}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.RetryConfig = fastRetry()

	value, err := client.Query(context.Background(), "patterns:getActive", map[string]any{"namespace": "tenant-a"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if gotPath != "/api/query" {
		t.Errorf("endpoint = %q, want /api/query", gotPath)
	}
	if gotBody["path"] != "patterns:getActive" {
		t.Errorf("path field = %v", gotBody["path"])
	}
	if gotBody["format"] != "json" {
		t.Errorf("format field = %v", gotBody["format"])
	}
	args, _ := gotBody["args"].(map[string]any)
	if args["namespace"] != "tenant-a" {
		t.Errorf("args = %v", gotBody["args"])
	}
	if value.Get("count").Int() != 3 {
		t.Errorf("value = %s", value.Raw)
	}
}

// TestMutationEndpoint tests that mutations hit the mutation endpoint
func TestMutationEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","value":"id-123"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.RetryConfig = fastRetry()

	value, err := client.Mutation(context.Background(), "patterns:create", nil)
	if err != nil {
		t.Fatalf("Mutation failed: %v", err)
	}
	if gotPath != "/api/mutation" {
		t.Errorf("endpoint = %q, want /api/mutation", gotPath)
	}
	if value.String() != "id-123" {
		t.Errorf("value = %q", value.String())
	}
}

// TestFunctionError tests that a Convex-side failure surfaces as
// FunctionError even though the HTTP call succeeded
func TestFunctionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","errorMessage":"table missing"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.RetryConfig = fastRetry()

	_, err := client.Query(context.Background(), "patterns:getActive", nil)
	var fnErr *FunctionError
	if !errors.As(err, &fnErr) {
		t.Fatalf("error = %T (%v), want *FunctionError", err, err)
	}
	if fnErr.Path != "patterns:getActive" {
		t.Errorf("path = %q", fnErr.Path)
	}
	if fnErr.Message != "table missing" {
		t.Errorf("message = %q", fnErr.Message)
	}
}

// TestServerErrorRetried tests that 5xx responses are retried until success
func TestServerErrorRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"success","value":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.RetryConfig = fastRetry()

	value, err := client.Query(context.Background(), "patterns:getActive", nil)
	if err != nil {
		t.Fatalf("Query failed after retries: %v", err)
	}
	if !value.Bool() {
		t.Errorf("value = %s", value.Raw)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

// TestClientErrorNotRetried tests that a 4xx response fails immediately
func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad args"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.RetryConfig = fastRetry()

	if _, err := client.Query(context.Background(), "patterns:getActive", nil); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestPersistentServerErrorExhausts tests that a dead deployment ends in an
// exhausted-retries error rather than a fake success
func TestPersistentServerErrorExhausts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.RetryConfig = fastRetry()

	_, err := client.Query(context.Background(), "patterns:getActive", nil)
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T (%v), want *retry.ExhaustedError", err, err)
	}
}
