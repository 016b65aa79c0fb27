package retry

import (
	"context"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker decides whether an attempt's outcome should trigger a retry
type ErrorChecker func(err error, statusCode int, responseBody []byte) bool

// Func is one attempt of the retried operation. It returns the response
// body, the HTTP status code (0 when the request never reached the server)
// and any transport error.
type Func func(attempt int) (responseBody []byte, statusCode int, err error)

// Logger receives printf-style retry progress messages
type Logger func(format string, args ...any)

// Options configures one Do invocation
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       Logger
	APIName      string
}

// calculateDelay computes the exponential-backoff delay for an attempt
func (c Config) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do runs fn with exponential backoff until it succeeds, a non-retryable
// outcome occurs, the context is cancelled or attempts are exhausted.
func Do(ctx context.Context, opts Options, fn Func) ([]byte, error) {
	var lastErr error
	var lastStatusCode int
	var lastBody []byte

	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.Config.calculateDelay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger("%s retry attempt %d/%d after %v delay",
					opts.APIName, attempt+1, opts.Config.MaxRetries+1, delay)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, statusCode, err := fn(attempt)
		lastErr = err
		lastStatusCode = statusCode
		lastBody = body

		if opts.ErrorChecker != nil && opts.ErrorChecker(err, statusCode, body) {
			if opts.Logger != nil {
				if err != nil {
					opts.Logger("%s attempt %d/%d failed: %v", opts.APIName, attempt+1, opts.Config.MaxRetries+1, err)
				} else {
					opts.Logger("%s attempt %d/%d got status %d", opts.APIName, attempt+1, opts.Config.MaxRetries+1, statusCode)
				}
			}
			continue
		}

		if err == nil {
			return body, nil
		}
		return nil, err
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &ExhaustedError{
		APIName:        opts.APIName,
		MaxAttempts:    opts.Config.MaxRetries + 1,
		LastStatusCode: lastStatusCode,
		LastResponse:   lastBody,
	}
}

// ExhaustedError reports that every retry attempt failed with a retryable
// status
type ExhaustedError struct {
	APIName        string
	MaxAttempts    int
	LastStatusCode int
	LastResponse   []byte
}

func (e *ExhaustedError) Error() string {
	return "retry attempts exhausted for " + e.APIName + " API"
}
