package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonwraymond/querybridge/dispatch"
	"github.com/jonwraymond/querybridge/health"
	"github.com/jonwraymond/querybridge/observe"
)

// Sender sends one request to the analytics backend.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) (*dispatch.Response, error)
}

// Config configures the Handler.
type Config struct {
	// Dispatcher sends backend requests. Required.
	Dispatcher Sender

	// Health serves the health_check tool. If nil, health_check reports the
	// server as degraded.
	Health *health.Aggregator

	// Timeout bounds each invocation end to end. Default: 300 seconds.
	Timeout time.Duration

	// Logger receives invocation events. If nil, logging is disabled.
	Logger observe.Logger

	// Metrics records invocations. If nil, metrics are disabled.
	Metrics observe.Metrics
}

// Handler validates tool invocations against the catalog and dispatches them
// to the backend. It is safe for concurrent use; invocations are independent
// units of work with no ordering guarantee.
type Handler struct {
	cfg   Config
	specs map[string]Spec
}

// NewHandler creates a handler over the full tool catalog.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("tools: dispatcher is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}

	specs := make(map[string]Spec)
	for _, s := range Catalog() {
		if _, dup := specs[s.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", s.Name)
		}
		specs[s.Name] = s
	}

	return &Handler{cfg: cfg, specs: specs}, nil
}

// List returns the tool catalog for the host framing layer.
func (h *Handler) List() []Spec {
	return Catalog()
}

// Invoke runs one tool invocation and always returns an envelope: a timeout,
// a backend failure, or a panic in a payload hook becomes an error envelope,
// never a propagated failure. Nothing from the invocation outlives the call.
func (h *Handler) Invoke(ctx context.Context, name string, args map[string]any) (env Envelope) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			env = h.failure(args, StatusError, fmt.Sprintf("internal error: %v", r))
		}
		h.cfg.Metrics.RecordInvocation(ctx, name, string(env.Status), time.Since(start))
		h.cfg.Logger.Info(ctx, "tool invocation",
			observe.Field{Key: "tool", Value: name},
			observe.Field{Key: "status", Value: string(env.Status)},
			observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		)
	}()

	spec, ok := h.specs[name]
	if !ok {
		return h.failure(args, StatusError, "unknown tool: "+name)
	}

	normalized, verr := spec.Validate(args)
	if verr != nil {
		return h.failure(args, StatusValidationError, verr.Message)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	if spec.Name == HealthCheckTool {
		return h.healthEnvelope(ctx)
	}

	resp, err := h.cfg.Dispatcher.Send(ctx, h.buildRequest(spec, normalized))
	if err != nil {
		status, msg := Classify(err)
		return h.failure(args, status, msg)
	}

	data, err := h.collect(resp)
	if err != nil {
		status, msg := Classify(err)
		return h.failure(args, status, msg)
	}

	return Envelope{Status: StatusSuccess, Data: data}
}

// buildRequest maps a validated invocation onto a backend request.
func (h *Handler) buildRequest(spec Spec, args map[string]any) dispatch.Request {
	endpoint := spec.Endpoint
	if spec.PathField != "" {
		if id, ok := args[spec.PathField].(int); ok {
			endpoint += "/" + strconv.Itoa(id)
		}
	}

	var payload any
	if len(spec.Fields) > 0 {
		payload = args
	}
	if spec.BuildPayload != nil {
		payload = spec.BuildPayload(args)
	}

	return dispatch.Request{
		Endpoint: endpoint,
		Method:   spec.Method,
		Payload:  payload,
		Stream:   spec.Stream,
	}
}

// collect turns a dispatch response into envelope data. Streamed chunks are
// concatenated; non-JSON stream output is wrapped as a JSON string.
func (h *Handler) collect(resp *dispatch.Response) (json.RawMessage, error) {
	if resp.Stream == nil {
		if len(resp.Data) == 0 {
			return json.RawMessage("null"), nil
		}
		return resp.Data, nil
	}

	defer func() { _ = resp.Stream.Close() }()
	collected, err := resp.Stream.Collect()
	if err != nil {
		return nil, err
	}
	if json.Valid(collected) && len(collected) > 0 {
		return collected, nil
	}
	quoted, err := json.Marshal(string(collected))
	if err != nil {
		return nil, err
	}
	return quoted, nil
}

func (h *Handler) healthEnvelope(ctx context.Context) Envelope {
	var report health.Report
	if h.cfg.Health != nil {
		report = h.cfg.Health.Report(ctx)
	} else {
		report = health.Report{
			Status:    health.StatusDegraded.String(),
			Timestamp: time.Now().UTC(),
			Services:  map[string]string{"health": "not configured"},
		}
	}

	data, err := json.Marshal(report)
	if err != nil {
		return Envelope{Status: StatusError, Error: "health report failed: " + err.Error()}
	}
	return Envelope{Status: StatusSuccess, Data: data}
}

// failure builds an error envelope, echoing the request's query and schema id
// when present. An empty query string is still echoed.
func (h *Handler) failure(args map[string]any, status Status, msg string) Envelope {
	env := Envelope{Status: status, Error: msg}
	if q, ok := args["userQuery"].(string); ok {
		env.Query = &q
	}
	if id, ok := asInt(args["schemaId"]); ok {
		env.SchemaID = &id
	}
	return env
}
