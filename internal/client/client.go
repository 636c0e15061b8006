// Package client talks to a running kotae server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
)

// DefaultServerURL is the address used when no server is given.
const DefaultServerURL = "http://localhost:8080"

// Client is an HTTP client for the kotae API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	extractor  *extract.Extractor
}

// New returns a client for the server at baseURL. A nil httpClient uses a client
// with a timeout long enough for generation.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		extractor:  extract.NewExtractor(),
	}
}

// StatusError is a non-success response from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &out)
}

// Ingest sends a document with inline content.
func (c *Client) Ingest(ctx context.Context, input models.DocumentInput) (*models.IngestResult, error) {
	var result models.IngestResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents", input, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Load extracts the file at path locally and sends its text to the server.
func (c *Client) Load(ctx context.Context, path string) (*models.IngestResult, error) {
	doc, err := c.extractor.Load(path)
	if err != nil {
		return nil, err
	}
	return c.Ingest(ctx, models.DocumentInput{ID: doc.ID, Source: doc.Source, Content: doc.Content})
}

// LoadRemote asks the server to read the file at path itself. The server only allows
// paths under its configured document roots.
func (c *Client) LoadRemote(ctx context.Context, path string) (*models.IngestResult, error) {
	return c.Ingest(ctx, models.DocumentInput{Path: path})
}

// Ask sends a question.
func (c *Client) Ask(ctx context.Context, question string) (models.Answer, error) {
	var answer models.Answer
	err := c.do(ctx, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: question}, http.StatusOK, &answer)
	return answer, err
}

// Status returns the server status report.
func (c *Client) Status(ctx context.Context) (models.StatusReport, error) {
	var report models.StatusReport
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &report)
	return report, err
}

// History returns up to limit recorded questions, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]*models.QuestionRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Questions []*models.QuestionRecord `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/history?"+q.Encode(), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, want int, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of a JSON error body, or returns the body as is.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
