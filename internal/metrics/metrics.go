// Package metrics exposes Prometheus counters for checks, assessments and
// status transitions. Each Metrics owns a private registry so several
// instances can coexist in one process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the sentinel collectors.
type Metrics struct {
	reg *prometheus.Registry

	ChecksTotal        *prometheus.CounterVec
	ViolationsTotal    *prometheus.CounterVec
	ShutdownsTotal     prometheus.Counter
	AssessmentsTotal   *prometheus.CounterVec
	RiskScore          prometheus.Histogram
	TransitionsTotal   *prometheus.CounterVec
	ConstraintReloads  *prometheus.CounterVec
	ConstraintSetSize  prometheus.Gauge
	AlertFailuresTotal prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_checks_total",
			Help: "Constraint checks performed, by outcome",
		}, []string{"outcome"}),
		ViolationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_violations_total",
			Help: "Constraint violations detected, by constraint and level",
		}, []string{"constraint", "level"}),
		ShutdownsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_shutdowns_total",
			Help: "Checks that required a shutdown",
		}),
		AssessmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_assessments_total",
			Help: "Risk assessments created, by recommendation",
		}, []string{"recommendation"}),
		RiskScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_risk_score",
			Help:    "Distribution of assessment risk scores",
			Buckets: []float64{20, 40, 60, 80, 100},
		}),
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_transitions_total",
			Help: "Assessment status transitions, by target status",
		}, []string{"to"}),
		ConstraintReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_constraint_reloads_total",
			Help: "Constraint file reloads, by result",
		}, []string{"result"}),
		ConstraintSetSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_constraints",
			Help: "Number of constraints in the active set",
		}),
		AlertFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_alert_failures_total",
			Help: "Alert deliveries that failed",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
