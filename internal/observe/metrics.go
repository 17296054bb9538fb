// Package observe provides observability primitives for lectern:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lectern metrics.
const meterName = "github.com/hyunw00/lectern"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks refinement stage latency. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageDuration metric.Float64Histogram

	// SegmentsFinalized counts segments emitted by the segment buffer.
	SegmentsFinalized metric.Int64Counter

	// FragmentsDropped counts transcript fragments discarded on ingestion.
	// Use with attribute: attribute.String("reason", ...)
	FragmentsDropped metric.Int64Counter

	// RunsCompleted counts pipeline runs reaching a terminal state. Use with
	// attribute: attribute.String("status", ...)
	RunsCompleted metric.Int64Counter

	// ProviderErrors counts LLM provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// InFlightRuns tracks the number of pipeline runs holding a worker slot.
	InFlightRuns metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round trips.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("lectern.stage.duration",
		metric.WithDescription("Latency of refinement stage execution by stage and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentsFinalized, err = m.Int64Counter("lectern.segments.finalized",
		metric.WithDescription("Total finalized segments emitted by the segment buffer."),
	); err != nil {
		return nil, err
	}
	if met.FragmentsDropped, err = m.Int64Counter("lectern.fragments.dropped",
		metric.WithDescription("Total transcript fragments discarded on ingestion by reason."),
	); err != nil {
		return nil, err
	}
	if met.RunsCompleted, err = m.Int64Counter("lectern.runs.completed",
		metric.WithDescription("Total pipeline runs reaching a terminal state by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lectern.provider.errors",
		metric.WithDescription("Total LLM provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.InFlightRuns, err = m.Int64UpDownCounter("lectern.runs.in_flight",
		metric.WithDescription("Number of pipeline runs currently holding a worker slot."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records one stage execution with its duration in seconds.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordFragmentDropped records a discarded transcript fragment.
func (m *Metrics) RecordFragmentDropped(ctx context.Context, reason string) {
	m.FragmentsDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordRunCompleted records a pipeline run reaching a terminal state.
func (m *Metrics) RecordRunCompleted(ctx context.Context, status string) {
	m.RunsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records an LLM provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
