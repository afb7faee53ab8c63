// Package metrics exposes Prometheus instrumentation for the runtime
// and the provider gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. A nil *Metrics is valid and
// records nothing, so instrumentation stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	aiCalls    *prometheus.CounterVec
	aiTokens   *prometheus.CounterVec
	aiCost     *prometheus.CounterVec
	wakeCycles *prometheus.CounterVec
	taskRouted *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewd_ai_calls_total",
			Help: "AI completion calls by workspace and provider.",
		}, []string{"workspace", "provider"}),
		aiTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewd_ai_tokens_total",
			Help: "Total tokens consumed by workspace and provider.",
		}, []string{"workspace", "provider"}),
		aiCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewd_ai_cost_usd_total",
			Help: "Estimated AI spend in USD by workspace and provider.",
		}, []string{"workspace", "provider"}),
		wakeCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewd_wake_cycles_total",
			Help: "Agent wake cycles by workspace and outcome.",
		}, []string{"workspace", "outcome"}),
		taskRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewd_tasks_routed_total",
			Help: "Task assignment decisions by workspace and outcome.",
		}, []string{"workspace", "outcome"}),
	}

	m.registry.MustRegister(m.aiCalls, m.aiTokens, m.aiCost, m.wakeCycles, m.taskRouted)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAICall records one completed AI call.
func (m *Metrics) ObserveAICall(workspace, provider string, tokens int, cost float64) {
	if m == nil {
		return
	}
	m.aiCalls.WithLabelValues(workspace, provider).Inc()
	m.aiTokens.WithLabelValues(workspace, provider).Add(float64(tokens))
	m.aiCost.WithLabelValues(workspace, provider).Add(cost)
}

// ObserveWakeCycle records one completed wake cycle. Outcome is one of
// "work", "idle" or "failed".
func (m *Metrics) ObserveWakeCycle(workspace, outcome string) {
	if m == nil {
		return
	}
	m.wakeCycles.WithLabelValues(workspace, outcome).Inc()
}

// ObserveTaskRouted records one assignment decision. Outcome is one of
// "assigned" or "skipped".
func (m *Metrics) ObserveTaskRouted(workspace, outcome string) {
	if m == nil {
		return
	}
	m.taskRouted.WithLabelValues(workspace, outcome).Inc()
}
