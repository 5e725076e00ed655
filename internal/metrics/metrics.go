// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chative"

// Turn outcomes.
const (
	OutcomeReplied  = "replied"
	OutcomeSilent   = "silent"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

var TurnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "turn",
		Name:      "total",
		Help:      "Processed conversation turns by outcome.",
	},
	[]string{"outcome"},
)

var TurnDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "turn",
		Name:      "duration_seconds",
		Help:      "End-to-end turn latency including persistence and delivery.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	},
)

var NodeDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "component_duration_seconds",
		Help:      "Latency of graph components (chat models, prompts, lambdas).",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"component", "name", "status"},
)

var ModelTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by chat models.",
	},
	[]string{"name", "type"},
)

var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "queue_depth",
		Help:      "Turns waiting for a worker.",
	},
)

var QueueRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "rejected_total",
		Help:      "Turns rejected because the queue was full.",
	},
)

var DeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "total",
		Help:      "Outbound message attempts by result.",
	},
	[]string{"result"},
)

var registerOnce sync.Once

// Register adds every collector to reg. Later calls are no-ops.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		reg.MustRegister(
			TurnsTotal,
			TurnDuration,
			NodeDuration,
			ModelTokensTotal,
			QueueDepth,
			QueueRejectedTotal,
			DeliveriesTotal,
		)
	})
}
