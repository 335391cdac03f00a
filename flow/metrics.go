package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FlowMetrics exposes Prometheus-compatible metrics for flow execution,
// namespaced "sagaflow_":
//
//  1. flows_inflight (gauge): flow runs currently executing.
//  2. step_duration_seconds (histogram, label "outcome"): per-step latency.
//  3. compensations_total (counter): compensation bodies invoked.
//  4. retries_total (counter): step retry attempts.
//
// A nil *FlowMetrics is safe to use with WithMetrics omitted entirely — the
// executor only records metrics when one is configured.
type FlowMetrics struct {
	flowsInflight prometheus.Gauge
	stepDuration  *prometheus.HistogramVec
	compensations prometheus.Counter
	retries       prometheus.Counter
}

// NewFlowMetrics registers the flow metrics against registry (or the default
// registerer, if nil).
func NewFlowMetrics(registry prometheus.Registerer) *FlowMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &FlowMetrics{
		flowsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sagaflow",
			Name:      "flows_inflight",
			Help:      "Number of flow runs currently executing.",
		}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sagaflow",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration in seconds, labeled by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		compensations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "compensations_total",
			Help:      "Cumulative count of compensation bodies invoked.",
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "retries_total",
			Help:      "Cumulative count of step retry attempts.",
		}),
	}
}

func (m *FlowMetrics) IncFlowsInflight() { m.flowsInflight.Inc() }
func (m *FlowMetrics) DecFlowsInflight() { m.flowsInflight.Dec() }

func (m *FlowMetrics) RecordStep(d time.Duration, outcome string) {
	m.stepDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *FlowMetrics) RecordCompensation() { m.compensations.Inc() }

func (m *FlowMetrics) RecordRetry() { m.retries.Inc() }
