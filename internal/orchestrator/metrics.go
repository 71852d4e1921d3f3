package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_total",
			Help: "Orders processed, by gateway and final status.",
		},
		[]string{"gateway", "status"},
	)

	gatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_gateway_call_duration_seconds",
			Help:    "Latency of gateway calls, by gateway and operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway", "operation"},
	)

	persistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_persistence_failures_total",
			Help: "Orders whose gateway call succeeded but whose record could not be persisted. Each one needs external reconciliation.",
		},
	)

	circuitOpenRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_circuit_open_rejections_total",
			Help: "Submissions rejected because the gateway circuit was open.",
		},
		[]string{"gateway"},
	)
)

// GetOrdersTotal exposes the order counter for tests and monitoring glue.
func GetOrdersTotal() *prometheus.CounterVec {
	return ordersTotal
}

// GetGatewayCallDuration exposes the gateway latency histogram.
func GetGatewayCallDuration() *prometheus.HistogramVec {
	return gatewayCallDuration
}

// GetPersistenceFailures exposes the persistence failure counter.
func GetPersistenceFailures() prometheus.Counter {
	return persistenceFailures
}

// GetCircuitOpenRejections exposes the open-circuit rejection counter.
func GetCircuitOpenRejections() *prometheus.CounterVec {
	return circuitOpenRejections
}
