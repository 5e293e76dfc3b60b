package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		0.1, 0.25, 0.5, // Fast checks (sub-millisecond)
		1, 2.5, 5, // Normal checks
		10, 25, 50, // Slow checks (long inputs, fuzzy scans)
		100, 250, 1000, // Pathological inputs
	}

	DecisionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_decisions_total",
			Help: "Total number of guardrail decisions by action",
		},
		[]string{"action"},
	)

	ThreatsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_threats_total",
			Help: "Detected input threats by category",
		},
		[]string{"category"},
	)

	OutputFlagsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_output_flags_total",
			Help: "Flagged model outputs by category",
		},
		[]string{"category"},
	)

	AlertsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_alerts_total",
			Help: "Alerts fired by severity",
		},
		[]string{"severity"},
	)

	AlertDeliveryFailures = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "promptshield_alert_delivery_failures_total",
			Help: "Alerts dropped after failed handler delivery",
		},
	)

	CheckLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptshield_check_latency_ms",
			Help:    "Guardrail check latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"stage"}, // "input" or "output"
	)

	CheckFailures = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_check_failures_total",
			Help: "Checks that failed and were resolved fail-closed",
		},
		[]string{"stage"},
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}
