// Package transport issues streaming POST requests against Responses-style
// endpoints and turns the text/event-stream body into parsed events. It also
// provides the lightweight reachability check used in ping mode.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flemzord/codexsw/internal/provider"
	"github.com/flemzord/codexsw/internal/sse"
)

// DefaultTimeout applies when a Request carries no timeout.
const DefaultTimeout = 30 * time.Second

// maxErrorBodySize caps how much of a non-2xx body is buffered.
const maxErrorBodySize = 10 * 1024 * 1024

// errRequestDeadline is the cancellation cause installed on the per-request
// context, so an expired timer can be told apart from a caller cancel.
var errRequestDeadline = errors.New("transport: request deadline")

// Request is one streaming POST.
type Request struct {
	URL string

	// Body is JSON-encoded. A nil Body sends "null".
	Body any

	// Headers are applied after the defaults and may override them.
	Headers map[string]string

	// Timeout bounds the whole exchange from issuance to end of body.
	Timeout time.Duration
}

// Response is the outcome of a successful Send.
type Response struct {
	Events     []sse.Event
	StatusCode int
	Header     http.Header
}

// Client sends requests. It is safe for concurrent use; each call owns its
// parser.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	onEvent func(sse.Event)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout field
// should be zero; deadlines come from Request.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithEventHook registers fn to be called for every event as it is parsed,
// before the response completes.
func WithEventHook(fn func(sse.Event)) Option {
	return func(c *Client) {
		c.onEvent = fn
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send issues req and streams the response through the SSE parser. It
// fails with provider.ErrTimeout when the deadline expires,
// provider.ErrNetwork on connection failures and *provider.HTTPStatusError
// on non-2xx statuses.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal request: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeoutCause(ctx, timeout, errRequestDeadline)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, req.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, reqCtx, err, timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil && reqCtx.Err() != nil {
			return nil, classify(ctx, reqCtx, readErr, timeout)
		}
		c.logger.Debug("transport: non-success status",
			"url", req.URL,
			"status", resp.StatusCode,
		)
		return nil, statusError(resp.StatusCode, body)
	}

	var events []sse.Event
	err = sse.Parse(resp.Body, func(ev sse.Event) {
		events = append(events, ev)
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	})
	if err != nil {
		return nil, classify(ctx, reqCtx, err, timeout)
	}

	c.logger.Debug("transport: stream completed",
		"url", req.URL,
		"status", resp.StatusCode,
		"events", len(events),
		"elapsed", time.Since(start),
	)

	return &Response{
		Events:     events,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}, nil
}

// Ping sends a HEAD request to url and reports the status code. Any HTTP
// response counts as reachable; only transport-level failures are errors.
func (c *Client) Ping(ctx context.Context, url string, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeoutCause(ctx, timeout, errRequestDeadline)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("transport: create request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, classify(ctx, reqCtx, err, timeout)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

// classify maps a failure onto the provider error taxonomy. The contexts
// are inspected rather than err itself because net/http reports aborted
// connections in several shapes.
func classify(parent, reqCtx context.Context, err error, timeout time.Duration) error {
	switch {
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: caller deadline exceeded", provider.ErrTimeout)
	case parent.Err() != nil:
		return fmt.Errorf("transport: %w", parent.Err())
	case errors.Is(context.Cause(reqCtx), errRequestDeadline):
		return fmt.Errorf("%w after %s", provider.ErrTimeout, timeout)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", provider.ErrTimeout, timeout)
	default:
		return fmt.Errorf("%w: %w", provider.ErrNetwork, err)
	}
}

// apiError is the error envelope returned by OpenAI-compatible services.
type apiError struct {
	Error json.RawMessage `json:"error"`
}

// statusError builds the error for a non-2xx response. The message comes
// from error.message in a JSON body, falling back to the raw body text.
func statusError(statusCode int, body []byte) error {
	var envelope apiError
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return &provider.HTTPStatusError{StatusCode: statusCode, Message: nested.Message}
		}
		var flat string
		if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
			return &provider.HTTPStatusError{StatusCode: statusCode, Message: flat}
		}
	}
	return &provider.HTTPStatusError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, bytes.TrimSpace(body)),
	}
}
