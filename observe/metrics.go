package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records telemetry for the dispatch layer.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly.
type Metrics interface {
	// RecordInvocation records one tool invocation with its envelope status.
	RecordInvocation(ctx context.Context, tool, status string, duration time.Duration)

	// RecordDispatch records one backend round trip.
	RecordDispatch(ctx context.Context, route string, httpStatus int, duration time.Duration)

	// RecordRefresh records one credential exchange attempt.
	RecordRefresh(ctx context.Context, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	invocations    metric.Int64Counter
	invocationHist metric.Float64Histogram
	dispatches     metric.Int64Counter
	dispatchHist   metric.Float64Histogram
	refreshes      metric.Int64Counter
	refreshFails   metric.Int64Counter
}

// newMetrics creates a Metrics instance backed by the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	invocations, err := meter.Int64Counter(
		"tool.invocations.total",
		metric.WithDescription("Total number of tool invocations by envelope status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	invocationHist, err := meter.Float64Histogram(
		"tool.invocations.duration_ms",
		metric.WithDescription("Tool invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter(
		"backend.dispatch.total",
		metric.WithDescription("Total number of backend round trips"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchHist, err := meter.Float64Histogram(
		"backend.dispatch.duration_ms",
		metric.WithDescription("Backend round trip duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	refreshes, err := meter.Int64Counter(
		"session.refresh.total",
		metric.WithDescription("Total number of credential exchange attempts"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, err
	}

	refreshFails, err := meter.Int64Counter(
		"session.refresh.errors",
		metric.WithDescription("Total number of failed credential exchanges"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		invocations:    invocations,
		invocationHist: invocationHist,
		dispatches:     dispatches,
		dispatchHist:   dispatchHist,
		refreshes:      refreshes,
		refreshFails:   refreshFails,
	}, nil
}

func (m *metricsImpl) RecordInvocation(ctx context.Context, tool, status string, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("tool.name", tool),
		attribute.String("envelope.status", status),
	)
	m.invocations.Add(ctx, 1, opt)
	m.invocationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordDispatch(ctx context.Context, route string, httpStatus int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("backend.route", route),
		attribute.Int("http.status", httpStatus),
	)
	m.dispatches.Add(ctx, 1, opt)
	m.dispatchHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRefresh(ctx context.Context, err error) {
	m.refreshes.Add(ctx, 1)
	if err != nil {
		m.refreshFails.Add(ctx, 1)
	}
}

// nopMetrics is a metrics implementation that does nothing.
type nopMetrics struct{}

func (m *nopMetrics) RecordInvocation(ctx context.Context, tool, status string, duration time.Duration) {
}
func (m *nopMetrics) RecordDispatch(ctx context.Context, route string, httpStatus int, duration time.Duration) {
}
func (m *nopMetrics) RecordRefresh(ctx context.Context, err error) {}

// NopMetrics returns a Metrics recorder that discards everything.
func NopMetrics() Metrics {
	return &nopMetrics{}
}
