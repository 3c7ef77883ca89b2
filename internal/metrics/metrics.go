// Package metrics mirrors the teacher's metrics.go idiom
// (prometheus.NewCounterVec/NewGaugeVec registered once, served by
// promhttp at /metrics) generalized to the counters/gauges spec.md §2
// names for this engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	IntentsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exec_intents_received_total", Help: "Intents received by the consumer loop"},
		[]string{"kind"},
	)

	IntentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exec_intents_rejected_total", Help: "Intents rejected by the risk guard"},
		[]string{"reason"},
	)

	IntentsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "exec_intents_expired_total", Help: "Intents marked Expired by the freshness check"},
	)

	FillsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exec_fills_total", Help: "Fills aggregated into shadow state"},
		[]string{"venue", "symbol"},
	)

	RouterLegErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exec_router_leg_errors_total", Help: "Fan-out leg failures by venue"},
		[]string{"venue"},
	)

	RiskState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "exec_risk_state", Help: "Current risk state indicator (1 for the active state's series)"},
		[]string{"state"},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "exec_open_positions", Help: "Current count of open positions"},
	)

	ExposureNotional = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "exec_exposure_notional_usd", Help: "Aggregate notional exposure"},
		[]string{"side"}, // long|short|net|gross
	)

	AckLatencyMillis = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "exec_ack_latency_ms", Help: "Intent ingress-to-ack latency", Buckets: prometheus.ExponentialBuckets(5, 2, 12)},
	)

	SlippageBps = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "exec_slippage_bps", Help: "Observed fill slippage vs decision-time reference", Buckets: prometheus.LinearBuckets(0, 10, 30)},
	)
)

func init() {
	prometheus.MustRegister(
		IntentsReceived, IntentsRejected, IntentsExpired, FillsRecorded,
		RouterLegErrors, RiskState, OpenPositions, ExposureNotional,
		AckLatencyMillis, SlippageBps,
	)
}
