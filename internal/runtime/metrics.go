package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded in ledgerbridge_bridge_calls_total.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
	OutcomeRejected = "rejected"
)

// Metrics are registered per runtime so several nodes can live in one
// process.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerbridge_bridge_calls_total",
			Help: "Bridge calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerbridge_bridge_call_duration_seconds",
			Help:    "Time callers spent blocked on a bridge call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerbridge_bridge_calls_in_flight",
			Help: "Bridge calls currently blocking a caller.",
		}),
	}
}

func (m *Metrics) observe(op, outcome string, elapsed time.Duration) {
	m.calls.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
