package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio"

// Set bundles every metric family the server exports, registered on one private registry.
type Set struct {
	Registry *prometheus.Registry
	HTTP     *HTTPMetrics
	Relay    *RelayMetrics
	Cache    *CacheMetrics
	Circuit  *CircuitMetrics
}

// NewSet creates a registry with the Go runtime and process collectors and registers all
// subsystems on it.
func NewSet() *Set {
	reg := NewRegistry()
	return &Set{
		Registry: reg,
		HTTP:     NewHTTPMetrics(reg),
		Relay:    NewRelayMetrics(reg),
		Cache:    NewCacheMetrics(reg),
		Circuit:  NewCircuitMetrics(reg),
	}
}

// Handler serves the set's registry in the Prometheus exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{
		Registry:          s.Registry,
		EnableOpenMetrics: true,
	})
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
