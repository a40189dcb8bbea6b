// Package metrics exposes Prometheus instrumentation for the
// credential lifecycle and the tool surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider owns the collectors and the registry they live in.
type Provider struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	authTotal       *prometheus.CounterVec
	toolCallsTotal  *prometheus.CounterVec
}

// NewProvider creates a provider with its own registry. A dedicated
// registry keeps default process collectors out of tests.
func NewProvider() *Provider {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Provider{
		registry: registry,
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calmcp_token_refresh_total",
			Help: "Token refresh attempts by result.",
		}, []string{"result"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "calmcp_token_refresh_duration_seconds",
			Help:    "Wall time of token refresh attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		authTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calmcp_gateway_auth_total",
			Help: "Gateway authentication outcomes.",
		}, []string{"outcome"}),
		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calmcp_tool_calls_total",
			Help: "MCP tool invocations by tool name.",
		}, []string{"tool"}),
	}
}

// Registry returns the Prometheus registry for the /metrics handler.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveRefresh records one refresh attempt. Implements the
// refresher's observer hook.
func (p *Provider) ObserveRefresh(result string, elapsed time.Duration) {
	p.refreshTotal.WithLabelValues(result).Inc()
	p.refreshDuration.Observe(elapsed.Seconds())
}

// ObserveAuth records a gateway authentication outcome.
func (p *Provider) ObserveAuth(outcome string) {
	p.authTotal.WithLabelValues(outcome).Inc()
}

// ObserveToolCall records an MCP tool invocation.
func (p *Provider) ObserveToolCall(tool string) {
	p.toolCallsTotal.WithLabelValues(tool).Inc()
}
