// Package metrics records pipeline stage outcomes. The Prometheus sink is
// the production implementation; Nop backs tests and metric-less deployments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels a finished stage attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Sink receives stage outcome observations.
type Sink interface {
	// RecordUpload counts one finished upload.
	RecordUpload(outcome Outcome)
	// RecordTranscription counts one finished transcription attempt and its
	// duration per provider.
	RecordTranscription(provider string, outcome Outcome, elapsed time.Duration)
	// RecordSummarization counts one finished summarization attempt and its
	// duration per provider.
	RecordSummarization(provider string, outcome Outcome, elapsed time.Duration)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordUpload(Outcome)                               {}
func (Nop) RecordTranscription(string, Outcome, time.Duration) {}
func (Nop) RecordSummarization(string, Outcome, time.Duration) {}

// Prometheus implements Sink on a Prometheus registry.
type Prometheus struct {
	registry *prometheus.Registry

	uploads         *prometheus.CounterVec
	transcriptions  *prometheus.CounterVec
	summarizations  *prometheus.CounterVec
	transcribeTimes *prometheus.HistogramVec
	summarizeTimes  *prometheus.HistogramVec
}

// NewPrometheus registers the pipeline collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		registry: registry,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidscribe_uploads_total",
			Help: "Finished video uploads by outcome.",
		}, []string{"outcome"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidscribe_transcriptions_total",
			Help: "Finished transcription attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		summarizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidscribe_summarizations_total",
			Help: "Finished summarization attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		transcribeTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidscribe_transcription_duration_seconds",
			Help:    "Transcription latency by provider.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"provider"}),
		summarizeTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidscribe_summarization_duration_seconds",
			Help:    "Summarization latency by provider.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider"}),
	}

	registry.MustRegister(p.uploads, p.transcriptions, p.summarizations, p.transcribeTimes, p.summarizeTimes)
	return p
}

func (p *Prometheus) RecordUpload(outcome Outcome) {
	p.uploads.WithLabelValues(string(outcome)).Inc()
}

func (p *Prometheus) RecordTranscription(provider string, outcome Outcome, elapsed time.Duration) {
	p.transcriptions.WithLabelValues(provider, string(outcome)).Inc()
	if outcome == OutcomeSuccess {
		p.transcribeTimes.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

func (p *Prometheus) RecordSummarization(provider string, outcome Outcome, elapsed time.Duration) {
	p.summarizations.WithLabelValues(provider, string(outcome)).Inc()
	if outcome == OutcomeSuccess {
		p.summarizeTimes.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the scrape endpoint for this registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
