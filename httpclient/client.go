package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// TraceIDHeader carries a per-request id so server logs can be correlated
const TraceIDHeader = "X-Trace-ID"

// Client is an HTTP client wrapper with logging and error mapping
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
	baseURL    string
	headers    map[string]string
}

// Config holds HTTP client configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Logger    zerolog.Logger
	Headers   map[string]string
	Transport http.RoundTripper
}

// New creates a new HTTP client
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
		logger:  cfg.Logger.With().Str("component", "http-client").Logger(),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
	}
}

// Request describes one call to the remote authority
type Request struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do executes req and decodes a 2xx JSON body into dest (which may be nil).
// Failures come back classified: AuthError for 401, TransportError for
// network failures and 5xx, ErrRejected for any other non-2xx.
func (c *Client) Do(ctx context.Context, req Request, dest interface{}) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := c.do(ctx, method, req.Path, req.Body, req.Headers)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.Transport(ctx.Err(), "Request cancelled.")
		}
		return apperrors.Transport(err, "Network error. Check your connection.")
	}

	if !resp.IsSuccess() {
		return apperrors.FromHTTPStatus(resp.StatusCode, resp.Detail())
	}

	if dest == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return apperrors.WrapWithDebug(err, apperrors.ErrTransport, "Unexpected response from server.", req.Path)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*Response, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	traceID := uuid.New().String()
	req.Header.Set(TraceIDHeader, traceID)

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	startTime := time.Now()
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("trace_id", traceID).
		Msg("HTTP request started")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Str("trace_id", traceID).
			Dur("duration", time.Since(startTime)).
			Msg("HTTP request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("trace_id", traceID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("HTTP request completed")

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}

// IsSuccess checks if the response indicates success
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Detail extracts the server's {"detail": "..."} message. Field validation
// bodies such as {"email": ["..."]} fall back to the first field message.
func (r *Response) Detail() string {
	var body types.DetailResponse
	if err := json.Unmarshal(r.Body, &body); err == nil && strings.TrimSpace(body.Detail) != "" {
		return strings.TrimSpace(body.Detail)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &fields); err != nil {
		return ""
	}
	keys := lo.Keys(fields)
	sort.Strings(keys)
	if lo.Contains(keys, "non_field_errors") {
		keys = append([]string{"non_field_errors"}, lo.Without(keys, "non_field_errors")...)
	}
	for _, key := range keys {
		var msgs []string
		if err := json.Unmarshal(fields[key], &msgs); err == nil && len(msgs) > 0 {
			return strings.TrimSpace(msgs[0])
		}
	}
	return ""
}
