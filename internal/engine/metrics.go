package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors an Engine reports to.
type Metrics struct {
	Plans    prometheus.Counter
	Queries  *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Warnings prometheus.Counter
	Latency  *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	plans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "querykit_plans_built_total",
		Help: "Total requests planned",
	})

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querykit_queries_executed_total",
		Help: "Total plans executed, by stage",
	}, []string{"stage"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querykit_query_failures_total",
		Help: "Total failed plan executions, by stage",
	}, []string{"stage"})

	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "querykit_plan_warnings_total",
		Help: "Total filters dropped with a warning",
	})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "querykit_query_duration_seconds",
		Help:    "Plan execution latency, by stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	reg.MustRegister(plans, queries, failures, warnings, latency)

	return &Metrics{
		Plans:    plans,
		Queries:  queries,
		Failures: failures,
		Warnings: warnings,
		Latency:  latency,
	}
}
