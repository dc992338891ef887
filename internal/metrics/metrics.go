// Package metrics exposes the Engine's Prometheus metrics surface: counters
// for ticks processed, positions opened/closed, and stop triggers, plus a
// gauge for live position count per symbol. Registered in init() and served
// by the controller transport at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TicksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradestop_ticks_processed_total",
			Help: "Book ticks processed by the engine, per symbol.",
		},
		[]string{"symbol"},
	)

	PositionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradestop_positions_opened_total",
			Help: "Positions opened, per symbol and direction.",
		},
		[]string{"symbol", "direction"},
	)

	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradestop_positions_closed_total",
			Help: "Positions closed, per symbol and reason (stop|controller).",
		},
		[]string{"symbol", "reason"},
	)

	StopTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradestop_stop_triggers_total",
			Help: "Stop-loss crossings observed by the ratchet, per symbol.",
		},
		[]string{"symbol"},
	)

	LivePositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradestop_live_positions",
			Help: "Currently open positions, per symbol.",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(TicksProcessed, PositionsOpened, PositionsClosed, StopTriggers, LivePositions)
}
