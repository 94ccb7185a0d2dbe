// Package observe provides application-wide observability primitives for
// Vocalign: OpenTelemetry metrics, tracing helpers, and structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vocalign metrics.
const meterName = "github.com/MrWong99/vocalign"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage pipeline latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// TranscriptionDuration tracks speech-to-text latency per span.
	TranscriptionDuration metric.Float64Histogram

	// PipelineRuns counts full pipeline executions. Use with attribute:
	//   attribute.String("status", ...)
	PipelineRuns metric.Int64Counter

	// SpansSegmented counts word spans produced by the segmenter.
	SpansSegmented metric.Int64Counter

	// ValidationIssues counts validation findings. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("severity", ...)
	ValidationIssues metric.Int64Counter

	// ProviderErrors counts transcription backend errors. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-stage processing of recordings up to a few minutes long.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("vocalign.stage.duration",
		metric.WithDescription("Latency of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("vocalign.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription per span."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.PipelineRuns, err = m.Int64Counter("vocalign.pipeline.runs",
		metric.WithDescription("Total pipeline executions by outcome status."),
	); err != nil {
		return nil, err
	}
	if met.SpansSegmented, err = m.Int64Counter("vocalign.spans.segmented",
		metric.WithDescription("Total word spans produced by segmentation."),
	); err != nil {
		return nil, err
	}
	if met.ValidationIssues, err = m.Int64Counter("vocalign.validation.issues",
		metric.WithDescription("Total validation issues by kind and severity."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("vocalign.provider.errors",
		metric.WithDescription("Total transcription backend errors by provider."),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the elapsed duration of a named pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration) {
	m.StageDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordValidationIssue records a single validation finding.
func (m *Metrics) RecordValidationIssue(ctx context.Context, kind, severity string) {
	m.ValidationIssues.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("severity", severity),
		),
	)
}

// RecordProviderError records a transcription backend error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
