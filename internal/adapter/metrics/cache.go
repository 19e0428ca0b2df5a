package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the maintenance flag cache.
type CacheMetrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Invalidations prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance_cache",
			Name:      "hits_total",
			Help:      "Total number of maintenance flag lookups served from memory.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance_cache",
			Name:      "misses_total",
			Help:      "Total number of maintenance flag lookups that went to redis.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance_cache",
			Name:      "invalidations_total",
			Help:      "Total number of maintenance cache invalidations received over pub/sub.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations)
	return m
}

func (m *CacheMetrics) Hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *CacheMetrics) Miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *CacheMetrics) Invalidated() {
	if m != nil {
		m.Invalidations.Inc()
	}
}
