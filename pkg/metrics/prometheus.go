package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the Prometheus implementation of the pipeline metrics.
type Recorder struct {
	ticks     *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lastPrice *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

var (
	once   sync.Once
	shared *Recorder
)

// New returns the process-wide recorder. Collectors are registered on the
// default registry the first time only.
func New() *Recorder {
	once.Do(func() {
		shared = &Recorder{
			ticks: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "fluxfeed_ticks_ingested_total",
				Help: "Price updates accepted into the snapshot, by source",
			}, []string{"source"}),
			errors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "fluxfeed_errors_total",
				Help: "Pipeline errors by kind",
			}, []string{"kind"}),
			lastPrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "fluxfeed_last_price",
				Help: "Last snapshot price per symbol",
			}, []string{"symbol"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fluxfeed_pipeline_latency_seconds",
				Help:    "Latency of pipeline operations",
				Buckets: prometheus.DefBuckets,
			}, []string{"op"}),
		}
	})
	return shared
}

// RecordTick counts one accepted update. symbol is not a label to keep
// cardinality bounded by source count.
func (r *Recorder) RecordTick(source, _ string) {
	r.ticks.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
