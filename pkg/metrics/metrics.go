// Package metrics exposes Prometheus instruments for ticks, policy decisions
// and execution lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the control-plane instruments. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	ticksTotal          *prometheus.CounterVec
	tickFailures        *prometheus.CounterVec
	decisionsTotal      *prometheus.CounterVec
	executionsTotal     *prometheus.CounterVec
	rejectionsTotal     *prometheus.CounterVec
	historyWriteErrors  prometheus.Counter
	executionDuration   prometheus.Histogram
	activeExecutions    *prometheus.GaugeVec
	cleanedUpExecutions prometheus.Counter
}

// NewCollector registers every instrument on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total number of tenant ticks evaluated",
		}, []string{"tenant_id"}),
		tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_tick_failures_total",
			Help: "Ticks that aborted and returned an empty result",
		}, []string{"tenant_id"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_decisions_total",
			Help: "Policy decisions by gate, ADMITTED when every gate passed",
		}, []string{"blocked_by"}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "executions_finished_total",
			Help: "Executions that reached a terminal status",
		}, []string{"status"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "executions_rejected_total",
			Help: "Start requests rejected by the trigger controller",
		}, []string{"reason"}),
		historyWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_write_errors_total",
			Help: "History records that could not be persisted",
		}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execution_duration_seconds",
			Help:    "Executor run time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		activeExecutions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "executions_active",
			Help: "Non-terminal executions tracked in memory",
		}, []string{"tenant_id"}),
		cleanedUpExecutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "executions_cleaned_up_total",
			Help: "Terminal executions removed from the in-memory table",
		}),
	}

	c.registry.MustRegister(
		c.ticksTotal,
		c.tickFailures,
		c.decisionsTotal,
		c.executionsTotal,
		c.rejectionsTotal,
		c.historyWriteErrors,
		c.executionDuration,
		c.activeExecutions,
		c.cleanedUpExecutions,
	)

	return c
}

func (c *Collector) RecordTick(tenantID string) {
	if c == nil {
		return
	}
	c.ticksTotal.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordTickFailure(tenantID string) {
	if c == nil {
		return
	}
	c.tickFailures.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordDecision(blockedBy string) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(blockedBy).Inc()
}

func (c *Collector) RecordExecution(status string, durationSeconds float64) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(status).Inc()
	if durationSeconds >= 0 {
		c.executionDuration.Observe(durationSeconds)
	}
}

func (c *Collector) RecordRejection(reason string) {
	if c == nil {
		return
	}
	c.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordHistoryWriteError() {
	if c == nil {
		return
	}
	c.historyWriteErrors.Inc()
}

func (c *Collector) SetActiveExecutions(tenantID string, n int) {
	if c == nil {
		return
	}
	c.activeExecutions.WithLabelValues(tenantID).Set(float64(n))
}

func (c *Collector) RecordCleanup(n int) {
	if c == nil {
		return
	}
	c.cleanedUpExecutions.Add(float64(n))
}

// Registry exposes the underlying registry for scraping and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
