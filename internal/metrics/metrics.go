// Package metrics provides Prometheus metrics for the analyzer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "call_analyzer"

// Metrics owns its registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PipelineRuns        prometheus.Counter
	PipelineDuration    prometheus.Histogram
	UtterancesTagged    prometheus.Counter
	SegmentsByStage     *prometheus.CounterVec
	Transcriptions      *prometheus.CounterVec
	TranscribeDuration  prometheus.Histogram
	RecordsWritten      *prometheus.CounterVec
	EventPublishTotal   *prometheus.CounterVec
	EventPublishErrors  *prometheus.CounterVec
	EventPublishLatency prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PipelineRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of stage tagging runs",
		}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent classifying, merging and seeding one call",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		UtterancesTagged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_tagged_total",
			Help:      "Total number of utterances classified",
		}),
		SegmentsByStage: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Merged segments produced, by stage",
		}, []string{"stage"}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription requests by outcome",
		}, []string{"outcome"}),
		TranscribeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_duration_seconds",
			Help:      "Wall time from upload to completed transcript",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		RecordsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Call records saved, by whether the checklist was seeded",
		}, []string{"seeded"}),
		EventPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Events published, by topic",
		}, []string{"topic"}),
		EventPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Failed event publishes, by topic",
		}, []string{"topic"}),
		EventPublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_latency_seconds",
			Help:      "Event publish latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveRun records one pipeline run.
func (m *Metrics) ObserveRun(utterances int, segmentsByStage map[string]int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRuns.Inc()
	m.PipelineDuration.Observe(elapsed.Seconds())
	m.UtterancesTagged.Add(float64(utterances))
	for stage, n := range segmentsByStage {
		m.SegmentsByStage.WithLabelValues(stage).Add(float64(n))
	}
}

// RecordTranscription records a transcription attempt. err == nil counts as success.
func (m *Metrics) RecordTranscription(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
	m.TranscribeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordWrite(seeded bool) {
	if m == nil {
		return
	}
	label := "false"
	if seeded {
		label = "true"
	}
	m.RecordsWritten.WithLabelValues(label).Inc()
}

// RecordEventPublish records a publish attempt.
func (m *Metrics) RecordEventPublish(topic string, err error, latency time.Duration) {
	if m == nil {
		return
	}
	m.EventPublishTotal.WithLabelValues(topic).Inc()
	m.EventPublishLatency.Observe(latency.Seconds())
	if err != nil {
		m.EventPublishErrors.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
