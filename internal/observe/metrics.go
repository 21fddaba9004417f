// Package observe provides Colloquy's observability primitives: OpenTelemetry
// metric instruments for the conversation pipeline and a Prometheus-bridged
// provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so metrics can be scraped
// from the standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution. With no provider installed the global default is a no-op, which
// keeps the conversation core testable without an exporter.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Colloquy metrics.
const meterName = "github.com/colloquy-ai/colloquy"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks text-to-speech synthesis setup latency: the
	// time from CreateSpeech until the result stream is available.
	SynthesisDuration metric.Float64Histogram

	// ChunkLag tracks how far behind schedule each emitted audio chunk ran:
	// actual elapsed time minus the chunk's nominal speech length.
	ChunkLag metric.Float64Histogram

	// --- Counters ---

	// Transcriptions counts consumed transcriptions. Attributes:
	//   attribute.Bool("final", ...)
	Transcriptions metric.Int64Counter

	// Interrupts counts broadcast interrupts that cancelled at least one
	// event.
	Interrupts metric.Int64Counter

	// Sentences counts reply sentences handed to synthesis.
	Sentences metric.Int64Counter

	// DroppedItems counts pipeline items dropped on error. Attributes:
	//   attribute.String("stage", ...)
	DroppedItems metric.Int64Counter

	// --- Gauges ---

	// ActiveConversations tracks the number of running conversations.
	ActiveConversations metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("colloquy.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis setup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChunkLag, err = m.Float64Histogram("colloquy.emitter.chunk_lag",
		metric.WithDescription("Schedule slip per emitted audio chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Transcriptions, err = m.Int64Counter("colloquy.transcriptions",
		metric.WithDescription("Total transcriptions consumed, by finality."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("colloquy.interrupts",
		metric.WithDescription("Total broadcast interrupts that cancelled at least one event."),
	); err != nil {
		return nil, err
	}
	if met.Sentences, err = m.Int64Counter("colloquy.sentences",
		metric.WithDescription("Total reply sentences handed to synthesis."),
	); err != nil {
		return nil, err
	}
	if met.DroppedItems, err = m.Int64Counter("colloquy.dropped_items",
		metric.WithDescription("Total pipeline items dropped on error, by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConversations, err = m.Int64UpDownCounter("colloquy.active_conversations",
		metric.WithDescription("Number of running conversations."),
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

// RecordTranscription records one consumed transcription.
func (m *Metrics) RecordTranscription(ctx context.Context, final bool) {
	m.Transcriptions.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("final", final)),
	)
}

// RecordDroppedItem records one dropped pipeline item for the given stage.
func (m *Metrics) RecordDroppedItem(ctx context.Context, stage string) {
	m.DroppedItems.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordSynthesis records one synthesis setup duration in seconds.
func (m *Metrics) RecordSynthesis(ctx context.Context, seconds float64, cached bool) {
	m.SynthesisDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.Bool("cached", cached)),
	)
}
