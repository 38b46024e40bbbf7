// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ai_call_transcriber"

// Metrics holds all Prometheus metrics for the transcriber.
type Metrics struct {
	// Invocation metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration prometheus.Histogram
	AudioSeconds       prometheus.Histogram

	// Segmentation metrics
	SpansDetected *prometheus.HistogramVec
	SpansDropped  prometheus.Counter

	// Scheduling metrics
	UnitsDispatched *prometheus.CounterVec
	UnitsInFlight   prometheus.Gauge
	UnitOutcomes    *prometheus.CounterVec
	EngineFallbacks *prometheus.CounterVec

	// Engine metrics
	EngineLatency *prometheus.HistogramVec
	EngineErrors  *prometheus.CounterVec
	PollAttempts  *prometheus.CounterVec
	RPCLatency    *prometheus.HistogramVec

	// Result metrics
	SegmentsEmitted   prometheus.Counter
	ResultViolations  *prometheus.CounterVec
	CriticalWordsSeen *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		InvocationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of pipeline invocations by result",
		}, []string{"result"}),
		InvocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of a pipeline invocation in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		AudioSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Duration of ingested audio in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		SpansDetected: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spans_detected",
			Help:      "Number of speech spans produced per invocation",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}, []string{"strategy"}),
		SpansDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_dropped_total",
			Help:      "Total number of spans dropped by the unit ceiling",
		}),

		UnitsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_dispatched_total",
			Help:      "Total number of work units dispatched to an engine",
		}, []string{"engine"}),
		UnitsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_in_flight",
			Help:      "Number of work units currently being transcribed",
		}),
		UnitOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_outcomes_total",
			Help:      "Total number of unit outcomes by kind",
		}, []string{"engine", "outcome"}),
		EngineFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_fallbacks_total",
			Help:      "Total number of switches to the fallback engine",
		}, []string{"from", "to"}),

		EngineLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_latency_seconds",
			Help:      "Transcription engine call latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"engine"}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of engine errors by kind",
		}, []string{"engine", "kind"}),
		PollAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Total number of cloud job status polls",
		}, []string{"provider", "status"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_client_latency_seconds",
			Help:      "Outbound gRPC call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "code"}),

		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_emitted_total",
			Help:      "Total number of transcript segments emitted",
		}),
		ResultViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_violations_total",
			Help:      "Total number of result invariant violations detected",
		}, []string{"rule"}),
		CriticalWordsSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_words_total",
			Help:      "Total number of critical words detected",
		}, []string{"word"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordInvocation records a finished invocation.
func (m *Metrics) RecordInvocation(result string, durationSeconds float64) {
	m.InvocationsTotal.WithLabelValues(result).Inc()
	m.InvocationDuration.Observe(durationSeconds)
}

// RecordAudio records the duration of an ingested buffer.
func (m *Metrics) RecordAudio(seconds float64) {
	m.AudioSeconds.Observe(seconds)
}

// RecordSpans records segmentation output and spans dropped by the ceiling.
func (m *Metrics) RecordSpans(strategy string, detected, dropped int) {
	m.SpansDetected.WithLabelValues(strategy).Observe(float64(detected))
	if dropped > 0 {
		m.SpansDropped.Add(float64(dropped))
	}
}

// RecordUnitStart records a unit being handed to an engine.
func (m *Metrics) RecordUnitStart(engine string) {
	m.UnitsDispatched.WithLabelValues(engine).Inc()
	m.UnitsInFlight.Inc()
}

// RecordUnitEnd records a unit outcome and its engine latency.
func (m *Metrics) RecordUnitEnd(engine, outcome string, latencySeconds float64) {
	m.UnitsInFlight.Dec()
	m.UnitOutcomes.WithLabelValues(engine, outcome).Inc()
	m.EngineLatency.WithLabelValues(engine).Observe(latencySeconds)
}

// RecordEngineError records an engine error by kind.
func (m *Metrics) RecordEngineError(engine, kind string) {
	m.EngineErrors.WithLabelValues(engine, kind).Inc()
}

// RecordFallback records a switch from one engine to another.
func (m *Metrics) RecordFallback(from, to string) {
	m.EngineFallbacks.WithLabelValues(from, to).Inc()
}

// RecordPoll records one cloud job status poll.
func (m *Metrics) RecordPoll(provider, status string) {
	m.PollAttempts.WithLabelValues(provider, status).Inc()
}

// RecordRPC records an outbound gRPC call.
func (m *Metrics) RecordRPC(method, code string, latencySeconds float64) {
	m.RPCLatency.WithLabelValues(method, code).Observe(latencySeconds)
}

// RecordSegments records emitted segments.
func (m *Metrics) RecordSegments(n int) {
	m.SegmentsEmitted.Add(float64(n))
}

// RecordViolation records a result invariant violation.
func (m *Metrics) RecordViolation(rule string) {
	m.ResultViolations.WithLabelValues(rule).Inc()
}

// RecordCriticalWord records a detected critical word.
func (m *Metrics) RecordCriticalWord(word string) {
	m.CriticalWordsSeen.WithLabelValues(word).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// Push sends the default registry to a Prometheus Pushgateway, grouped by instance.
func Push(ctx context.Context, url, job, instance string) error {
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", instance).
		PushContext(ctx)
}
