package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records cache activity.
type Metrics struct {
	lookups  *prometheus.CounterVec
	builds   prometheus.Counter
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates cache metrics and registers them on reg.
// Collectors already registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact_cache",
			Name:      "lookups_total",
			Help:      "Artifact lookups by layer and result.",
		}, []string{"layer", "result"}),
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact_cache",
			Name:      "builds_total",
			Help:      "Artifacts generated.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact_cache",
			Name:      "failures_total",
			Help:      "Failed builds, reads and writes.",
		}, []string{"op"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "artifact_cache",
			Name:      "build_duration_seconds",
			Help:      "Time spent generating an artifact.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg == nil {
		return m
	}

	m.lookups = register(reg, m.lookups)
	m.builds = register(reg, m.builds)
	m.failures = register(reg, m.failures)
	m.duration = register(reg, m.duration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		reg.MustRegister(c)
	}
	return c
}

func (m *Metrics) hit(layer string) {
	if m != nil {
		m.lookups.WithLabelValues(layer, "hit").Inc()
	}
}

func (m *Metrics) miss(layer string) {
	if m != nil {
		m.lookups.WithLabelValues(layer, "miss").Inc()
	}
}

func (m *Metrics) built(d time.Duration) {
	if m != nil {
		m.builds.Inc()
		m.duration.Observe(d.Seconds())
	}
}

func (m *Metrics) failed(op string) {
	if m != nil {
		m.failures.WithLabelValues(op).Inc()
	}
}
