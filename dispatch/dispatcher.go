package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/querybridge/observe"
)

// TokenSource supplies bearer tokens for outgoing requests and accepts
// invalidation when the backend rejects one.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Token returns an error only when no usable token can be acquired.
type TokenSource interface {
	// Token returns a usable bearer token, refreshing if necessary.
	Token(ctx context.Context) (string, error)

	// Cookies returns session cookies to replay on requests.
	Cookies() []*http.Cookie

	// Invalidate discards the current token so the next Token call refreshes.
	Invalidate()
}

// Config configures the Dispatcher.
type Config struct {
	// BaseURL is the backend base URL.
	BaseURL string

	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource

	// Timeout bounds each Send call end to end. Default: 60 seconds.
	Timeout time.Duration

	// HTTPClient is the client used for backend calls. If nil, a default
	// client is used; per-call deadlines come from the Send context.
	HTTPClient *http.Client

	// Logger receives dispatch events. If nil, logging is disabled.
	Logger observe.Logger

	// Metrics records round trips. If nil, metrics are disabled.
	Metrics observe.Metrics

	// Tracer traces round trips. If nil, tracing is disabled.
	Tracer trace.Tracer
}

// Request describes one backend call.
type Request struct {
	// Endpoint is the backend endpoint name (e.g. "get-trend-data",
	// "metadata/get/123"). Resolved to a service route internally.
	Endpoint string

	// Method is the HTTP method. Default: POST.
	Method string

	// Payload is the JSON body for POST/PUT/PATCH requests.
	Payload any

	// Query carries URL query parameters.
	Query url.Values

	// Stream requests a streamed response exposed as a chunk sequence.
	Stream bool
}

// Response is the outcome of a successful dispatch. Exactly one of Data and
// Stream is set.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Data is the decoded response body for non-streamed calls.
	Data json.RawMessage

	// Stream is the chunk sequence for streamed calls. The caller owns it
	// and must Close it.
	Stream *Stream
}

// errUnauthorized marks a 401 response inside the bounded retry loop.
var errUnauthorized = errors.New("dispatch: unauthorized")

// attemptResult carries one attempt's outcome and whether a single
// refresh-and-retry may follow.
type attemptResult struct {
	resp      *Response
	err       error
	retryable bool
}

// Dispatcher sends authenticated requests to the analytics backend.
// It is safe for concurrent use.
type Dispatcher struct {
	cfg    Config
	client *http.Client
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("dispatch: base URL is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("dispatch: token source is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{cfg: cfg, client: client}, nil
}

// Send performs one backend call: it attaches the current bearer token and
// session cookies, bounds the call with the configured timeout, and retries
// exactly once after an unauthorized response. All failures come back as one
// of the typed errors in this package.
//
// For streamed responses the returned Stream owns the call's deadline;
// closing the stream releases the connection.
func (d *Dispatcher) Send(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodPost
	}

	target, err := buildURL(d.cfg.BaseURL, req.Endpoint)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)

	ctx, span := d.cfg.Tracer.Start(ctx, "backend.dispatch",
		trace.WithAttributes(
			attribute.String("backend.endpoint", req.Endpoint),
			attribute.String("http.method", req.Method),
			attribute.Bool("backend.stream", req.Stream),
		))

	resp, err := d.sendBounded(ctx, cancel, req, target)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	// A live stream owns the cancel; everything else is done with it now.
	if err != nil || resp.Stream == nil {
		cancel()
	}
	return resp, err
}

// sendBounded runs the bounded retry loop: at most one refresh-and-retry,
// triggered only by an unauthorized response.
func (d *Dispatcher) sendBounded(ctx context.Context, cancel context.CancelFunc, req Request, target string) (*Response, error) {
	const maxAttempts = 2

	var last attemptResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = d.attempt(ctx, cancel, req, target)
		if last.err == nil {
			return last.resp, nil
		}
		if !last.retryable {
			return nil, last.err
		}
		if attempt == maxAttempts {
			break
		}
		d.cfg.Logger.Warn(ctx, "unauthorized response, refreshing session",
			observe.Field{Key: "endpoint", Value: req.Endpoint})
		d.cfg.Tokens.Invalidate()
	}

	// Two consecutive unauthorized responses: the session cannot be made
	// valid for this call.
	return nil, &AuthError{Message: "request unauthorized after token refresh"}
}

func (d *Dispatcher) attempt(ctx context.Context, cancel context.CancelFunc, req Request, target string) attemptResult {
	token, err := d.cfg.Tokens.Token(ctx)
	if err != nil {
		return attemptResult{err: &AuthError{Message: "could not acquire token", Err: err}}
	}

	httpReq, err := d.buildHTTPRequest(ctx, req, target, token)
	if err != nil {
		return attemptResult{err: &TransportError{Message: "build request", Err: err}}
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.cfg.Metrics.RecordDispatch(ctx, req.Endpoint, 0, time.Since(start))
		return attemptResult{err: classifyTransport(ctx, err)}
	}
	d.cfg.Metrics.RecordDispatch(ctx, req.Endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		drain(resp.Body)
		return attemptResult{err: errUnauthorized, retryable: true}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if req.Stream {
			return attemptResult{resp: &Response{
				Status: resp.StatusCode,
				Stream: newStream(ctx, resp, cancel),
			}}
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return attemptResult{err: classifyTransport(ctx, err)}
		}
		return attemptResult{resp: &Response{Status: resp.StatusCode, Data: data}}

	case resp.StatusCode >= 500:
		msg := readBackendMessage(resp.Body)
		_ = resp.Body.Close()
		return attemptResult{err: &BackendServiceError{Status: resp.StatusCode, Message: msg}}

	default: // remaining 4xx
		msg := readBackendMessage(resp.Body)
		_ = resp.Body.Close()
		return attemptResult{err: &BackendValidationError{Status: resp.StatusCode, Message: msg}}
	}
}

func (d *Dispatcher) buildHTTPRequest(ctx context.Context, req Request, target, token string) (*http.Request, error) {
	var body io.Reader
	if req.Payload != nil && bodyMethod(req.Method) {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}

	if len(req.Query) > 0 {
		httpReq.URL.RawQuery = req.Query.Encode()
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "querybridge/1.0")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for _, c := range d.cfg.Tokens.Cookies() {
		httpReq.AddCookie(c)
	}

	return httpReq, nil
}

func bodyMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// classifyTransport separates timeouts from other network failures.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TransportError{Message: "backend call exceeded deadline", Timeout: true, Err: err}
	}
	return &TransportError{Message: "backend call failed", Err: err}
}

// readBackendMessage extracts the backend's own error detail from a failure
// body, falling back to the raw (bounded) body text.
func readBackendMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "no response body"
	}

	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(bytes.TrimSpace(data))
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
