package llm

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

// Config contains configuration for the HTTP client.
type Config struct {
	// BaseURL is the provider endpoint root, e.g. https://api.openai.com.
	BaseURL string

	// APIKey authenticates requests (Bearer scheme).
	APIKey string

	// Model is the default model when a request names none.
	Model string

	// Timeout bounds a single request including retries' individual
	// attempts. Default: 30s.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts for transient errors.
	// Default: 3.
	MaxRetries int

	// MaxIdleConns and MaxIdleConnsPerHost configure connection pooling.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:             30 * time.Second,
		MaxRetries:          3,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
type HTTPClient struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates an HTTP language model client.
func NewHTTPClient(config *Config, logger *slog.Logger) (*HTTPClient, error) {
	if config == nil {
		return nil, &ConfigError{Field: "config", Message: "cannot be nil"}
	}
	if config.BaseURL == "" {
		return nil, &ConfigError{Field: "base_url", Message: "is required"}
	}
	if config.APIKey == "" {
		return nil, &ConfigError{Field: "api_key", Message: "is required"}
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Transport: transport, Timeout: config.Timeout},
		logger: logger.With("component", "llm.client"),
	}, nil
}

// chatRequest is the wire shape of a chat-completions request.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse is the wire shape of a chat-completions response.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Complete sends a completion request, retrying transient failures with
// exponential backoff. Authentication and rate-limit errors are returned
// immediately.
func (c *HTTPClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &ConfigError{Field: "request", Message: "at least one message is required"}
	}

	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := c.config.BaseURL + "/v1/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Debug("retrying completion request",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, &TimeoutError{Timeout: c.config.Timeout}
			case <-time.After(backoff):
			}
		}

		resp, retryable, err := c.attempt(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// attempt performs one HTTP round trip. The second return reports whether
// the failure is retryable.
func (c *HTTPClient) attempt(ctx context.Context, url string, body []byte) (*Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, &TimeoutError{Timeout: c.config.Timeout}
		}
		return nil, true, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, &ParseError{Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, false, &ParseError{RawResponse: string(respBody), Cause: err}
		}
		if len(parsed.Choices) == 0 {
			return nil, false, &ParseError{
				RawResponse: string(respBody),
				Cause:       fmt.Errorf("response has no choices"),
			}
		}
		return &Response{
			Content: parsed.Choices[0].Message.Content,
			Model:   parsed.Model,
			Usage:   parsed.Usage,
		}, false, nil

	case httpResp.StatusCode == http.StatusUnauthorized, httpResp.StatusCode == http.StatusForbidden:
		return nil, false, &AuthError{Message: string(respBody)}

	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, false, &RateLimitError{
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
			Message:    string(respBody),
		}

	case httpResp.StatusCode >= 500:
		return nil, true, &APIError{StatusCode: httpResp.StatusCode, Message: string(respBody)}

	default:
		return nil, false, &APIError{StatusCode: httpResp.StatusCode, Message: string(respBody)}
	}
}

// parseRetryAfter parses a Retry-After header in delay-seconds or HTTP-date
// form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
