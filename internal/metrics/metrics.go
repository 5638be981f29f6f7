// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "botdeck"

// Dispatch results
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// DispatchTotal counts strategy dispatches by outcome
var DispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "dispatch_total",
		Help:      "Strategy dispatches by strategy and result",
	},
	[]string{"strategy", "result"},
)

// DispatchDuration tracks how long one dispatch takes
var DispatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of a single strategy dispatch",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"strategy"},
)

// TicksTotal counts scheduler ticks
var TicksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Scheduler ticks executed",
	},
)

// TradesTotal counts trades recorded in the ledger
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "trades_total",
		Help:      "Trades recorded by side",
	},
	[]string{"side"},
)

// TradeVolume sums traded notional
var TradeVolume = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "volume_total",
		Help:      "Total traded notional (amount * price)",
	},
)

// BotsByStatus is the number of bots in each lifecycle state
var BotsByStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "bots",
		Help:      "Bots by lifecycle status",
	},
	[]string{"status"},
)

// ConnectionProbes counts connectivity probes by outcome
var ConnectionProbes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connections",
		Name:      "probes_total",
		Help:      "Connectivity probes by result",
	},
	[]string{"result"},
)

// PersistenceErrors counts failed best-effort writes to the store
var PersistenceErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Failed writes to the persistence layer",
	},
	[]string{"entity"},
)

// ObserveDispatch records the outcome and duration of one dispatch
func ObserveDispatch(strategy, result string, started time.Time) {
	DispatchTotal.WithLabelValues(strategy, result).Inc()
	if result != ResultSkipped {
		DispatchDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
	}
}
