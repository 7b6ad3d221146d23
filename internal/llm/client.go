// Package llm provides an OpenAI-compatible HTTP client for chat completions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	chatPath   = "/v1/chat/completions"
	modelsPath = "/v1/models"

	maxErrorBody = 200
)

// AuthFunc returns the current Authorization header value, or "" for none.
type AuthFunc func() string

// BearerToken returns an AuthFunc for a static API key.
func BearerToken(apiKey string) AuthFunc {
	return func() string {
		if apiKey == "" {
			return ""
		}
		return "Bearer " + apiKey
	}
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Body == "" {
		return "API error " + status
	}
	return fmt.Sprintf("API error %s: %s", status, e.Body)
}

// Client communicates with an OpenAI-compatible API.
type Client struct {
	BaseURL    string
	Auth       AuthFunc
	HTTPClient *http.Client

	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds connection setup and the wait for response headers.
// Complete and ListModels also use d as a per-call deadline. A stream body
// is bounded only by the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.DialContext = (&net.Dialer{Timeout: d, KeepAlive: 30 * time.Second}).DialContext
		tr.TLSHandshakeTimeout = d
		tr.ResponseHeaderTimeout = d
		c.HTTPClient = &http.Client{Transport: tr}
		c.timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client with the given parameters.
func NewClient(baseURL string, auth AuthFunc, opts ...Option) *Client {
	if auth == nil {
		auth = BearerToken("")
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Auth:       auth,
		HTTPClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("llm")
	return c
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body := *req
	body.Stream = false
	body.StreamOptions = nil

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.post(ctx, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Stream sends a streaming chat completion request and returns the raw
// event-stream body. The caller owns the body and must close it; NewDecoder
// takes care of that.
func (c *Client) Stream(ctx context.Context, req *ChatCompletionRequest) (io.ReadCloser, error) {
	body := *req
	body.Stream = true
	body.StreamOptions = &StreamOptions{IncludeUsage: true}

	resp, err := c.post(ctx, &body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListModels fetches the models the service exposes.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+modelsPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result ModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	return result.Data, nil
}

// callContext applies the configured timeout to a call whose body is read
// in full before returning.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) post(ctx context.Context, req *ChatCompletionRequest) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("chat request",
		zap.String("model", req.Model),
		zap.Bool("stream", req.Stream),
		zap.Int("message_count", len(req.Messages)),
	)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		serr := statusError(resp)
		c.logger.Warn("chat request rejected",
			zap.String("model", req.Model),
			zap.Int("status", resp.StatusCode),
		)
		return nil, serr
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if v := c.Auth(); v != "" {
		req.Header.Set("Authorization", v)
	}
}

func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
