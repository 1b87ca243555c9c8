package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the portfolio services
type Metrics struct {
	UpstreamFallbacks *prometheus.CounterVec
	RefreshLatency    *prometheus.HistogramVec
	RefreshErrors     *prometheus.CounterVec
	TransfersImported prometheus.Counter
	LastImportedBlock *prometheus.GaugeVec
	ChatRequests      *prometheus.CounterVec
	ChatIntents       *prometheus.CounterVec
	LLMLatency        prometheus.Histogram
}

// NewMetrics registers the service metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_upstream_fallbacks_total",
			Help: "Times fallback data was served because an upstream failed",
		}, []string{"source"}),
		RefreshLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "copilot_refresh_latency_seconds",
			Help:    "Time taken by a background refresh cycle",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		RefreshErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_refresh_errors_total",
			Help: "Total number of background refresh errors",
		}, []string{"job"}),
		TransfersImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "copilot_transfers_imported_total",
			Help: "Total number of chain transfers imported into the ledger",
		}),
		LastImportedBlock: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "copilot_last_imported_block",
			Help: "Last block imported per tracked wallet",
		}, []string{"wallet"}),
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_chat_requests_total",
			Help: "Chat requests by outcome",
		}, []string{"outcome"}),
		ChatIntents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_chat_intents_total",
			Help: "Answered chat turns by resolved intent",
		}, []string{"intent"}),
		LLMLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "copilot_llm_latency_seconds",
			Help:    "Time taken by the language model to answer",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40},
		}),
	}
}
