package ledger

import (
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "reserve_ledger"

// Metrics holds the Prometheus collectors for a Ledger.
type Metrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	tokenReserve   prometheus.Gauge
	baseReserve    prometheus.Gauge
	publishFailure prometheus.Counter
}

// NewMetrics creates the ledger collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Ledger operations by action and result (ok or error kind).",
		}, []string{"action", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in load-compute-store for each action.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"action"}),
		tokenReserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "token_reserve",
			Help:      "Token reserve after the last persisted transition.",
		}),
		baseReserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "base_reserve",
			Help:      "Base reserve after the last persisted transition.",
		}),
		publishFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_failures_total",
			Help:      "Events that could not be handed to the publisher.",
		}),
	}

	reg.MustRegister(m.operations, m.duration, m.tokenReserve, m.baseReserve, m.publishFailure)
	return m
}

func (m *Metrics) observeResult(action engine.Action, err error) {
	result := "ok"
	if err != nil {
		result = engine.ErrorKind(err)
	}
	m.operations.WithLabelValues(string(action), result).Inc()
}

func (m *Metrics) observeState(state engine.ReserveState) {
	m.tokenReserve.Set(float64(state.TokenReserve))
	m.baseReserve.Set(float64(state.BaseReserve))
}
