// Package metrics provides internal Prometheus collectors.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/types"
)

// Collector aggregates the conversation loop's operational metrics.
type Collector struct {
	stepsTotal         *prometheus.CounterVec
	interventionsTotal prometheus.Counter

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	experimentsTotal    *prometheus.CounterVec
	variantsBredTotal   *prometheus.CounterVec
	variantsPrunedTotal *prometheus.CounterVec
	populationSize      *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector registers the trioflow metric family on reg. Pass nil to use
// the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.stepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of conversation steps",
		},
		[]string{"role", "strategy"},
	)

	c.interventionsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderator_interventions_total",
			Help:      "Total number of reactive moderator interventions",
		},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.experimentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiments_recorded_total",
			Help:      "Total number of prompt experiments recorded",
		},
		[]string{"role"},
	)

	c.variantsBredTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variants_bred_total",
			Help:      "Total number of prompt variants bred",
		},
		[]string{"role", "kind"},
	)

	c.variantsPrunedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variants_pruned_total",
			Help:      "Total number of prompt variants pruned",
		},
		[]string{"role"},
	)

	c.populationSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population_size",
			Help:      "Current number of variants per role population",
		},
		[]string{"role"},
	)

	return c
}

// RecordStep counts one completed conversation step.
func (c *Collector) RecordStep(role types.Role, strategy string) {
	c.stepsTotal.WithLabelValues(string(role), strategy).Inc()
}

// RecordIntervention counts one reactive moderator intervention.
func (c *Collector) RecordIntervention() {
	c.interventionsTotal.Inc()
}

// RecordLLMRequest counts one upstream call and its latency.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordExperiment counts one recorded prompt experiment.
func (c *Collector) RecordExperiment(role types.Role) {
	c.experimentsTotal.WithLabelValues(string(role)).Inc()
}

// RecordVariantBred counts one bred variant.
func (c *Collector) RecordVariantBred(role types.Role, kind string) {
	c.variantsBredTotal.WithLabelValues(string(role), kind).Inc()
}

// RecordVariantPruned counts one pruned variant.
func (c *Collector) RecordVariantPruned(role types.Role) {
	c.variantsPrunedTotal.WithLabelValues(string(role)).Inc()
}

// SetPopulationSize tracks the live variant count for a role.
func (c *Collector) SetPopulationSize(role types.Role, n int) {
	c.populationSize.WithLabelValues(string(role)).Set(float64(n))
}
