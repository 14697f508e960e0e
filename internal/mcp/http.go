package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nugget/lifeops/internal/config"
	"github.com/nugget/lifeops/internal/httpkit"
)

const (
	maxResponseBytes = 10 << 20
	maxErrorBytes    = 4 << 10
)

// HTTPConfig configures the streamable HTTP transport.
type HTTPConfig struct {
	// URL is the tool endpoint, e.g. https://mcp.example/mcp.
	URL string

	// Bearer is the API token. A missing "Bearer " prefix is added.
	Bearer string

	// Headers are additional headers sent with every request.
	Headers map[string]string

	// Timeout bounds each call. Zero uses the httpkit default.
	Timeout time.Duration

	// DialRetries retries calls whose connection was refused.
	DialRetries int

	Logger *slog.Logger
}

// HTTPTransport posts JSON-RPC requests to a single endpoint.
type HTTPTransport struct {
	url        string
	auth       string
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	sessionID string // Mcp-Session header for session affinity
}

// NewHTTPTransport creates an HTTP transport for the given config.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []httpkit.Option{httpkit.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, httpkit.WithTimeout(cfg.Timeout))
	}
	if cfg.DialRetries > 0 {
		opts = append(opts, httpkit.WithRetry(cfg.DialRetries, time.Second))
	}

	return &HTTPTransport{
		url:        cfg.URL,
		auth:       bearer(cfg.Bearer),
		headers:    cfg.Headers,
		httpClient: httpkit.NewClient(opts...),
		logger:     logger,
	}
}

func bearer(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

// Send posts req and decodes the response through the envelope chain.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create HTTP request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if t.auth != "" {
		httpReq.Header.Set("Authorization", t.auth)
	}
	if key := IdempotencyKey(ctx); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	t.mu.RLock()
	if t.sessionID != "" {
		httpReq.Header.Set("Mcp-Session", t.sessionID)
	}
	t.mu.RUnlock()

	t.logger.Log(ctx, config.LevelTrace, "tool request", "method", req.Method, "id", req.ID, "json", string(body))

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("POST %s: %w", t.url, err)}
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if sid := httpResp.Header.Get("Mcp-Session"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &TransportError{
			StatusCode: httpResp.StatusCode,
			Body:       httpkit.ReadErrorBody(httpResp.Body, maxErrorBytes),
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	t.logger.Log(ctx, config.LevelTrace, "tool response",
		"id", req.ID,
		"status", httpResp.StatusCode,
		"content_type", httpResp.Header.Get("Content-Type"),
		"body", string(respBody),
	)

	resp, err := decodeEnvelope(respBody)
	if err != nil {
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Body: truncate(string(respBody), maxErrorBytes), Err: err}
	}
	return resp, nil
}

// Close is a no-op; httpkit owns the connection pool.
func (t *HTTPTransport) Close() error {
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
