// Package querybridge connects named analytics tools to a remote analytics
// backend: it loads configuration, maintains the authenticated session,
// dispatches validated tool invocations, and reports health. The transport
// framing that carries invocations to this layer is the caller's concern.
package querybridge

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/querybridge/config"
	"github.com/jonwraymond/querybridge/dispatch"
	"github.com/jonwraymond/querybridge/health"
	"github.com/jonwraymond/querybridge/observe"
	"github.com/jonwraymond/querybridge/session"
	"github.com/jonwraymond/querybridge/tools"
)

// ServiceName identifies this module in telemetry.
const ServiceName = "querybridge"

// Bridge is the assembled stack: session, dispatcher, tool handler, and
// health aggregator sharing one observer. It is safe for concurrent use.
type Bridge struct {
	cfg      config.Config
	observer observe.Observer
	sessions *session.Manager
	handler  *tools.Handler
	health   *health.Aggregator
}

// New assembles a bridge from the given configuration. If obs is nil, a
// default observer is created with structured logging at cfg.LogLevel and
// tracing/metrics disabled.
func New(ctx context.Context, cfg config.Config, obs observe.Observer) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if obs == nil {
		var err error
		obs, err = observe.NewObserver(ctx, observe.Config{
			ServiceName: ServiceName,
			Logging:     observe.LoggingConfig{Enabled: true, Level: cfg.LogLevel},
		})
		if err != nil {
			return nil, err
		}
	}

	client := newHTTPClient(cfg.ConnectTimeout)

	sessions, err := session.NewManager(session.Config{
		BaseURL:     cfg.BaseURL,
		Credentials: session.NewCredentials(cfg.ClientID, cfg.Secret),
		StaticToken: cfg.APIToken,
		HTTPClient:  client,
		Logger:      obs.Logger().WithComponent("session"),
		Metrics:     obs.Metrics(),
	})
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.Config{
		BaseURL:    cfg.BaseURL,
		Tokens:     sessions,
		Timeout:    cfg.RequestTimeout,
		HTTPClient: client,
		Logger:     obs.Logger().WithComponent("dispatch"),
		Metrics:    obs.Metrics(),
		Tracer:     obs.Tracer(),
	})
	if err != nil {
		return nil, err
	}

	aggregator := health.NewAggregator(ServiceName,
		health.NewBackendChecker(dispatcher, cfg.ConnectTimeout))

	handler, err := tools.NewHandler(tools.Config{
		Dispatcher: dispatcher,
		Health:     aggregator,
		Timeout:    cfg.TotalTimeout,
		Logger:     obs.Logger().WithComponent("tools"),
		Metrics:    obs.Metrics(),
	})
	if err != nil {
		return nil, err
	}

	return &Bridge{
		cfg:      cfg,
		observer: obs,
		sessions: sessions,
		handler:  handler,
		health:   aggregator,
	}, nil
}

// NewFromEnv assembles a bridge from environment configuration.
func NewFromEnv(ctx context.Context) (*Bridge, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, nil)
}

// Config returns the configuration the bridge was assembled with.
func (b *Bridge) Config() config.Config {
	return b.cfg
}

// Tools returns the tool catalog for the host framing layer.
func (b *Bridge) Tools() []tools.Spec {
	return b.handler.List()
}

// Invoke runs one tool invocation and always returns an envelope.
func (b *Bridge) Invoke(ctx context.Context, name string, args map[string]any) tools.Envelope {
	return b.handler.Invoke(ctx, name, args)
}

// Health reports the aggregate health of the bridge and its backend.
func (b *Bridge) Health(ctx context.Context) health.Report {
	return b.health.Report(ctx)
}

// Close flushes and shuts down the bridge's observer.
func (b *Bridge) Close(ctx context.Context) error {
	return b.observer.Shutdown(ctx)
}

// newHTTPClient builds the shared backend client. Per-call deadlines come
// from request contexts; only connection establishment is bounded here.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = config.DefaultConnectTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
