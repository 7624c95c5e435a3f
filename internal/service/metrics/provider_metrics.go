package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeLimited = "rate_limited"
	OutcomeSkipped = "unsupported"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxfeed",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fluxfeed",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of provider calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ResolvedBy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxfeed",
			Subsystem: "resolver",
			Name:      "resolved_total",
			Help:      "Quotes resolved, by winning source",
		},
		[]string{"source"},
	)

	SyntheticSeries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fluxfeed",
			Subsystem: "chart",
			Name:      "synthetic_series_total",
			Help:      "Chart requests served with a generated placeholder series",
		},
	)
)

// ObserveCall records one provider call.
func ObserveCall(provider, outcome string, elapsed time.Duration) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeLimited && outcome != OutcomeSkipped {
		ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}
