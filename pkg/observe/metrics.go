// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge so instruments
// stay scrapeable via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/deepread-ai/deepread"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks single LLM call latency. Attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	LLMDuration metric.Float64Histogram

	// StageDuration tracks workflow stage latency. Attributes:
	//   attribute.String("kind", ...), attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// LLMRequests counts LLM calls. Attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// LLMRetries counts transient-failure retries of LLM calls. Attribute:
	//   attribute.String("provider", ...)
	LLMRetries metric.Int64Counter

	// Submissions counts task submissions by outcome. Attributes:
	//   attribute.String("kind", ...), attribute.String("outcome", ...)
	Submissions metric.Int64Counter

	// TasksFinished counts terminal tasks. Attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...),
	//   attribute.String("error_kind", ...) (failed tasks only)
	TasksFinished metric.Int64Counter

	// DocumentsWritten counts finished reports. Attribute:
	//   attribute.String("mode", ...)
	DocumentsWritten metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks tasks waiting in the priority queue.
	QueueDepth metric.Int64UpDownCounter

	// TasksProcessing tracks tasks currently held by workers.
	TasksProcessing metric.Int64UpDownCounter

	// StreamSubscribers tracks live progress-stream subscribers.
	StreamSubscribers metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for LLM-dominated latencies: single calls run seconds to minutes.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("deepread.llm.duration",
		metric.WithDescription("Latency of a single LLM call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("deepread.stage.duration",
		metric.WithDescription("Latency of a workflow stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("deepread.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.LLMRequests, err = m.Int64Counter("deepread.llm.requests",
		metric.WithDescription("Total LLM calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMRetries, err = m.Int64Counter("deepread.llm.retries",
		metric.WithDescription("Total transient-failure retries of LLM calls."),
	); err != nil {
		return nil, err
	}
	if met.Submissions, err = m.Int64Counter("deepread.tasks.submitted",
		metric.WithDescription("Total task submissions by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.TasksFinished, err = m.Int64Counter("deepread.tasks.finished",
		metric.WithDescription("Total terminal tasks by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.DocumentsWritten, err = m.Int64Counter("deepread.documents.written",
		metric.WithDescription("Total finished reports by mode."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("deepread.queue.depth",
		metric.WithDescription("Tasks waiting in the priority queue."),
	); err != nil {
		return nil, err
	}
	if met.TasksProcessing, err = m.Int64UpDownCounter("deepread.tasks.processing",
		metric.WithDescription("Tasks currently held by workers."),
	); err != nil {
		return nil, err
	}
	if met.StreamSubscribers, err = m.Int64UpDownCounter("deepread.stream.subscribers",
		metric.WithDescription("Live progress-stream subscribers."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordLLMRequest records one finished LLM call.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.LLMRequests.Add(ctx, 1, attrs)
	m.LLMDuration.Record(ctx, seconds, attrs)
}

// RecordLLMRetry records one transient-failure retry.
func (m *Metrics) RecordLLMRetry(ctx context.Context, provider string) {
	m.LLMRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordStage records one finished workflow stage.
func (m *Metrics) RecordStage(ctx context.Context, kind, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("stage", stage),
		),
	)
}

// RecordSubmission records one submission outcome (created, exists,
// in_progress, queue_full, invalid).
func (m *Metrics) RecordSubmission(ctx context.Context, kind, outcome string) {
	m.Submissions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordTaskFinished records one terminal task. errorKind is empty for
// completed tasks.
func (m *Metrics) RecordTaskFinished(ctx context.Context, kind, status, errorKind string) {
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.String("status", status),
	}
	if errorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", errorKind))
	}
	m.TasksFinished.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDocumentWritten records one finished report.
func (m *Metrics) RecordDocumentWritten(ctx context.Context, mode string) {
	m.DocumentsWritten.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

// RecordHTTPRequest records one finished HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, seconds float64) {
	m.HTTPRequestDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}
