package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusDataCollector counts runs and action outcomes.
type PrometheusDataCollector struct {
	registry      *prometheus.Registry
	flowRuns      *prometheus.CounterVec
	flowDuration  *prometheus.HistogramVec
	actionResults *prometheus.CounterVec
	policies      *prometheus.CounterVec
}

var _ WorkflowDataCollector = new(PrometheusDataCollector)

// NewPrometheusDataCollector registers its metrics on registry, a fresh registry is used when nil.
func NewPrometheusDataCollector(registry *prometheus.Registry) *PrometheusDataCollector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &PrometheusDataCollector{
		registry: registry,
		flowRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automate_flow_runs_total",
				Help: "Number of finished flow runs by outcome.",
			},
			[]string{"flow", "status"},
		),
		flowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "automate_flow_run_duration_seconds",
				Help:    "Duration of flow runs.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow"},
		),
		actionResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automate_action_results_total",
				Help: "Number of action executions by outcome.",
			},
			[]string{"flow", "action", "status"},
		),
		policies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automate_error_policies_total",
				Help: "Number of applied error policies.",
			},
			[]string{"flow", "policy"},
		),
	}
	registry.MustRegister(c.flowRuns, c.flowDuration, c.actionResults, c.policies)
	return c
}

func (c *PrometheusDataCollector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *PrometheusDataCollector) Collect(rec Record) error {
	switch rec.Kind {
	case RECORD_FLOW_FINISHED:
		status := "completed"
		if len(rec.Reason) != 0 {
			status = "failed"
		}
		c.flowRuns.WithLabelValues(rec.FlowId, status).Inc()
		if rec.Duration > 0 {
			c.flowDuration.WithLabelValues(rec.FlowId).Observe(rec.Duration.Seconds())
		}
	case RECORD_ACTION_SUCCESS:
		c.actionResults.WithLabelValues(rec.FlowId, rec.ActionId, "success").Inc()
	case RECORD_ACTION_FAILURE:
		c.actionResults.WithLabelValues(rec.FlowId, rec.ActionId, "failure").Inc()
	case RECORD_POLICY:
		c.policies.WithLabelValues(rec.FlowId, string(rec.Policy)).Inc()
	}
	return nil
}

func (c *PrometheusDataCollector) Close() error {
	return nil
}
