// Package observe provides application-wide observability primitives for the
// reader server: OpenTelemetry metrics, tracing, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. Tests should use [NewMetrics]
// with a private [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all reader metrics.
const meterName = "github.com/OdraBelfegor/novel-reader-t"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// SynthesisDuration tracks end-to-end sentence synthesis latency,
	// including retries.
	SynthesisDuration metric.Float64Histogram

	// RenderDuration tracks how long a remote render takes from the play
	// request until its end report.
	RenderDuration metric.Float64Histogram

	// SynthesisRequests counts synthesis calls. Use with
	// attribute.String("status", "ok"|"error").
	SynthesisRequests metric.Int64Counter

	// RenderOutcomes counts finished renders. Use with
	// attribute.String("outcome", ...).
	RenderOutcomes metric.Int64Counter

	// ProviderFetches counts content-provider page requests. Use with
	// attribute.String("status", "ok"|"empty"|"error").
	ProviderFetches metric.Int64Counter

	// LoopContinuations counts automatic loop continuations. Use with
	// attribute.String("direction", "forward"|"backward").
	LoopContinuations metric.Int64Counter

	// ActiveListeners tracks the number of connected listeners.
	ActiveListeners metric.Int64UpDownCounter

	// ActiveSessions tracks whether a playback session is live (0 or 1).
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Renders
// last as long as the spoken sentence, so the tail is generous.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider], or the global provider when mp is nil. Returns an
// error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("reader.synthesis.duration",
		metric.WithDescription("Latency of sentence synthesis including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RenderDuration, err = m.Float64Histogram("reader.render.duration",
		metric.WithDescription("Duration of a remote render from play request to end report."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisRequests, err = m.Int64Counter("reader.synthesis.requests",
		metric.WithDescription("Number of synthesis calls."),
	); err != nil {
		return nil, err
	}
	if met.RenderOutcomes, err = m.Int64Counter("reader.render.outcomes",
		metric.WithDescription("Number of finished renders by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderFetches, err = m.Int64Counter("reader.provider.fetches",
		metric.WithDescription("Number of content-provider page requests."),
	); err != nil {
		return nil, err
	}
	if met.LoopContinuations, err = m.Int64Counter("reader.loop.continuations",
		metric.WithDescription("Number of automatic loop continuations."),
	); err != nil {
		return nil, err
	}
	if met.ActiveListeners, err = m.Int64UpDownCounter("reader.listeners.active",
		metric.WithDescription("Number of connected listeners."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("reader.sessions.active",
		metric.WithDescription("Number of live playback sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("reader.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordRenderOutcome is a nil-safe helper for counting a finished render.
func (m *Metrics) RecordRenderOutcome(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.RenderOutcomes.Add(ctx, 1, attrs)
	m.RenderDuration.Record(ctx, seconds, attrs)
}

// RecordSynthesis is a nil-safe helper for counting a synthesis call.
func (m *Metrics) RecordSynthesis(ctx context.Context, status string, seconds float64) {
	if m == nil {
		return
	}
	m.SynthesisRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
	m.SynthesisDuration.Record(ctx, seconds)
}

// RecordProviderFetch is a nil-safe helper for counting a page request.
func (m *Metrics) RecordProviderFetch(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.ProviderFetches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordLoopContinuation is a nil-safe helper for counting a continuation.
func (m *Metrics) RecordLoopContinuation(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.LoopContinuations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", direction)))
}

// AddListeners is a nil-safe helper for the listener gauge.
func (m *Metrics) AddListeners(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveListeners.Add(ctx, delta)
}

// AddSessions is a nil-safe helper for the session gauge.
func (m *Metrics) AddSessions(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}
