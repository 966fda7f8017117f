package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions prometheus.Gauge

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	agentRunTotal    *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	agentTurnsTotal  *prometheus.CounterVec

	modelCallTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
	registry    *prometheus.Registry
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "strix_active_sessions",
				Help: "Number of registered interactive sessions.",
			}),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strix_tool_executions_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "strix_tool_execution_duration_seconds",
					Help:    "Tool execution duration by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strix_agent_runs_total",
					Help: "Total agent runs by terminal status.",
				},
				[]string{"status"},
			),
			agentRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "strix_agent_run_duration_seconds",
					Help:    "End-to-end run duration by terminal status.",
					Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
				},
				[]string{"status"},
			),
			agentTurnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strix_agent_turns_total",
					Help: "Total executed turns by agent.",
				},
				[]string{"agent"},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strix_model_calls_total",
					Help: "Total model backend calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
		}

		registry = prometheus.NewRegistry()
		registry.MustRegister(
			m.activeSessions,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.agentRunTotal,
			m.agentRunDuration,
			m.agentTurnsTotal,
			m.modelCallTotal,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered forces metric registration. Safe to call multiple times.
func EnsureRegistered() {
	getMetrics()
}

// Handler exposes the metrics registry over HTTP.
func Handler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// SetActiveSessions records the current number of registered sessions.
func SetActiveSessions(n int) {
	getMetrics().activeSessions.Set(float64(n))
}

// RecordToolExecution records one tool invocation.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordAgentRun records one completed run.
func RecordAgentRun(status string, duration time.Duration) {
	m := getMetrics()
	m.agentRunTotal.WithLabelValues(status).Inc()
	m.agentRunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordTurn records one executed turn for an agent.
func RecordTurn(agent string) {
	getMetrics().agentTurnsTotal.WithLabelValues(agent).Inc()
}

// RecordModelCall records one model backend call.
func RecordModelCall(provider string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	getMetrics().modelCallTotal.WithLabelValues(provider, status).Inc()
}
