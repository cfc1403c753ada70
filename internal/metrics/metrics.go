// Package metrics exports pipeline outcomes and stage latencies to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alcyxob/imagegate/internal/domain"
)

// OutcomeAccepted labels outcomes that passed every stage.
const OutcomeAccepted = "ACCEPTED"

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "imagegate").
	Namespace string

	// Buckets are the histogram buckets for stage duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is where collectors are registered.
	// Default: a fresh prometheus.Registry
	Registry *prometheus.Registry
}

// Option configures Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics implements pipeline.Observer.
type Metrics struct {
	registry      *prometheus.Registry
	outcomes      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
}

// New registers the upload collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "imagegate",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "upload_outcomes_total",
			Help:      "Upload requests by final outcome",
		}, []string{"reason"}),

		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "upload_stage_duration_seconds",
			Help:      "Time spent in each validation stage",
			Buckets:   cfg.Buckets,
		}, []string{"stage"}),

		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "upload_stage_failures_total",
			Help:      "Rejections by the stage that produced them",
		}, []string{"stage", "reason"}),
	}
}

// ObserveStage records how long a stage ran and whether it rejected.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(stage, string(domain.ReasonOf(err))).Inc()
	}
}

// ObserveOutcome counts a finished request.
func (m *Metrics) ObserveOutcome(outcome domain.Outcome) {
	label := OutcomeAccepted
	if !outcome.Accepted() {
		label = string(outcome.Reason())
	}
	m.outcomes.WithLabelValues(label).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
