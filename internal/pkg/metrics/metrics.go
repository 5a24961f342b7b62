package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Счетчики ценового ядра, отдаются через promhttp на /metrics.
var (
	PriceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_requests_total",
			Help: "Number of price lookups handled, by endpoint.",
		},
		[]string{"endpoint"},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_cache_hits_total",
			Help: "Number of price lookups served from the result cache.",
		},
	)

	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_source_failures_total",
			Help: "Number of per-source price resolution failures.",
		},
		[]string{"source"},
	)

	PriceDivergencePercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "price_divergence_percent",
			Help: "Last observed cross-source price difference, percent of the average.",
		},
	)
)

// MustRegisterMetrics registers all collectors on the default registry.
// Panics on double registration, поэтому вызывается один раз из main.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		PriceRequestsTotal,
		CacheHitsTotal,
		SourceFailuresTotal,
		PriceDivergencePercent,
	)
}
