package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type engineMetrics struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	amounts    *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// EngineMetrics returns the lazily-initialised metrics registry used to record
// distribution engine activity.
func EngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hubswap",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hubswap",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Total engine errors segmented by operation and category.",
			}, []string{"operation", "category"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "hubswap",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hubswap",
				Subsystem: "engine",
				Name:      "amount_total",
				Help:      "Cumulative token amounts moved, segmented by flow.",
			}, []string{"flow"}),
		}
		prometheus.MustRegister(
			engineRegistry.operations,
			engineRegistry.errors,
			engineRegistry.latency,
			engineRegistry.amounts,
		)
	})
	return engineRegistry
}

// Observe records the outcome and duration of an engine operation.
func (m *engineMetrics) Observe(operation string, err error, category string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if category == "" {
			category = "internal"
		}
		m.errors.WithLabelValues(operation, category).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddAmount accumulates a moved token amount under the given flow label
// (user_payout, liquidity, cashback, reward, withdrawal, vault_funding).
func (m *engineMetrics) AddAmount(flow string, amount uint64) {
	if m == nil {
		return
	}
	m.amounts.WithLabelValues(flow).Add(float64(amount))
}
