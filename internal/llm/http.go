package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one generation request.
const DefaultTimeout = 120 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// HTTPClient posts prompts to an endpoint that accepts {"prompt": ...} and answers
// {"response": ...}. It makes exactly one request per call.
type HTTPClient struct {
	endpoint string
	apiKey   string
	options  map[string]any
	http     *http.Client
	logger   *zap.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

// WithTimeout sets the request timeout on the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.http.Timeout = d
		}
	}
}

// WithOptions adds static fields to every request body (for example max_tokens).
// A "prompt" key is ignored.
func WithOptions(opts map[string]any) Option {
	return func(h *HTTPClient) {
		for k, v := range opts {
			if k == "prompt" {
				continue
			}
			h.options[k] = v
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(h *HTTPClient) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTPClient creates a client for endpoint authenticated with apiKey.
func NewHTTPClient(endpoint, apiKey string, opts ...Option) (*HTTPClient, error) {
	if endpoint == "" || apiKey == "" {
		return nil, models.NewConfigurationError("endpoint and key required")
	}
	h := &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		options:  make(map[string]any),
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Generate sends prompt and returns the "response" field verbatim.
// Every failure is a *models.GenerationError.
func (h *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := make(map[string]any, len(h.options)+1)
	for k, v := range h.options {
		body[k] = v
	}
	body["prompt"] = prompt

	data, err := json.Marshal(body)
	if err != nil {
		return "", &models.GenerationError{Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", &models.GenerationError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		return "", &models.GenerationError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &models.GenerationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	h.logger.Debug("llm response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return "", &models.GenerationError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &models.GenerationError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	raw, ok := result["response"]
	if !ok {
		return "", &models.GenerationError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("response field missing"),
		}
	}
	var text *string
	if err := json.Unmarshal(raw, &text); err != nil || text == nil {
		return "", &models.GenerationError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("response field is not a string"),
		}
	}
	return *text, nil
}
