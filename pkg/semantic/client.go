package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// ClientConfig configures the HTTP semantic-analysis client.
type ClientConfig struct {
	// Name identifies the service in logs and errors.
	Name string

	// Endpoint is the URL that receives analysis requests.
	Endpoint string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds a single HTTP attempt. The caller's context deadline
	// bounds the call as a whole.
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures.
	MaxRetries int

	// RetryBackoff is the base delay between retries (doubled each attempt).
	RetryBackoff time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Name:         "semantic",
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RetryBackoff: 100 * time.Millisecond,
	}
}

type analyzeRequest struct {
	Excerpt  string `json:"excerpt"`
	Question string `json:"question"`
}

// Client calls a remote semantic-analysis service over HTTP.
type Client struct {
	config ClientConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a semantic-analysis client.
func NewClient(config ClientConfig, logger *slog.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("semantic endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		return nil, fmt.Errorf("semantic timeout must be positive")
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("semantic max retries cannot be negative")
	}
	if config.Name == "" {
		config.Name = "semantic"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		logger: logger.With("component", "semantic.client", "service", config.Name),
	}, nil
}

// Analyze sends the excerpt and question to the service. Transient failures
// (transport errors, 429, 5xx) are retried with exponential backoff while the
// context allows.
func (c *Client) Analyze(ctx context.Context, excerpt, question string) (Finding, error) {
	body, err := json.Marshal(analyzeRequest{Excerpt: excerpt, Question: question})
	if err != nil {
		return Finding{}, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.RetryBackoff
			c.logger.Debug("retrying analysis", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return Finding{}, &ServiceError{Service: c.config.Name, Message: "cancelled", Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		finding, retry, err := c.do(ctx, body)
		if err == nil {
			return finding, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return Finding{}, lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (Finding, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Finding{}, false, &ServiceError{Service: c.config.Name, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport errors are retryable unless the caller gave up.
		return Finding{}, ctx.Err() == nil, &ServiceError{Service: c.config.Name, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Finding{}, true, &ServiceError{Service: c.config.Name, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return Finding{}, retryable(resp.StatusCode), &ServiceError{
			Service:    c.config.Name,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	var finding Finding
	if err := json.Unmarshal(payload, &finding); err != nil {
		return Finding{}, false, &ServiceError{Service: c.config.Name, Message: "failed to decode response", Cause: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	switch finding.Verdict {
	case VerdictViolation, VerdictCompliant, VerdictUncertain:
	default:
		return Finding{}, false, &ServiceError{Service: c.config.Name, Message: "unknown verdict", Cause: fmt.Errorf("%w: %q", ErrInvalidResponse, finding.Verdict)}
	}
	if finding.Confidence < 0 || finding.Confidence > 1 {
		return Finding{}, false, &ServiceError{Service: c.config.Name, Message: "confidence out of range", Cause: ErrInvalidResponse}
	}

	return finding, false, nil
}
