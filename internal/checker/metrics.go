package checker

import "github.com/prometheus/client_golang/prometheus"

// registerer matches prometheus.Registerer; an interface alias keeps the
// constructor signature testable without a real registry.
type registerer = prometheus.Registerer

// metrics holds the checker's collectors. They exist unregistered when no
// registry is supplied, so the worker never branches on observability.
type metrics struct {
	checked        prometheus.Counter
	failed         prometheus.Counter
	stackDepth     prometheus.Gauge
	batchRemaining prometheus.Gauge
}

func newMetrics(reg registerer, queueLen func() int) *metrics {
	m := &metrics{
		checked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geologic",
			Subsystem: "checker",
			Name:      "obligations_checked_total",
			Help:      "Proof obligations the worker has attempted to verify.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geologic",
			Subsystem: "checker",
			Name:      "obligations_failed_total",
			Help:      "Proof obligations whose verification failed.",
		}),
		stackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geologic",
			Subsystem: "checker",
			Name:      "stack_depth",
			Help:      "Depth of the worker's depth-first verification stack.",
		}),
		batchRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geologic",
			Subsystem: "checker",
			Name:      "batch_remaining_weight",
			Help:      "Structural weight of the unverified remainder of the current batch.",
		}),
	}

	if reg != nil {
		queueDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "geologic",
			Subsystem: "checker",
			Name:      "queue_depth",
			Help:      "Obligations waiting in the cross-goroutine submission queue.",
		}, func() float64 { return float64(queueLen()) })
		reg.MustRegister(m.checked, m.failed, m.stackDepth, m.batchRemaining, queueDepth)
	}
	return m
}
