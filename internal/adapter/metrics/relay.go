package metrics

import "github.com/prometheus/client_golang/prometheus"

// Eviction reasons used as label values.
const (
	EvictIdle     = "idle"
	EvictSlow     = "slow"
	EvictCapacity = "capacity"
)

// RelayMetrics holds Prometheus metrics for the sync relay. A nil *RelayMetrics is valid and records nothing.
type RelayMetrics struct {
	ConnectedClients    *prometheus.GaugeVec
	Broadcasts          *prometheus.CounterVec
	Deliveries          prometheus.Counter
	Evictions           *prometheus.CounterVec
	MalformedFrames     prometheus.Counter
	QueueDepth          prometheus.Gauge
	CommandChannelDepth prometheus.Gauge
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ConnectedClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connected_clients",
			Help:      "Number of registered sync clients, by role.",
		}, []string{"role"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcasts_total",
			Help:      "Total number of change broadcasts, by message kind.",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "preview_deliveries_total",
			Help:      "Total number of change messages handed to preview clients.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "evictions_total",
			Help:      "Total number of clients removed by the relay, by reason.",
		}, []string{"reason"}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "malformed_frames_total",
			Help:      "Total number of inbound frames that failed to decode.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "change_queue_depth",
			Help:      "Number of change messages held in the ring buffer.",
		}),
		CommandChannelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "command_channel_depth",
			Help:      "Number of pending commands in the relay dispatch channel.",
		}),
	}

	reg.MustRegister(m.ConnectedClients, m.Broadcasts, m.Deliveries, m.Evictions, m.MalformedFrames, m.QueueDepth, m.CommandChannelDepth)
	return m
}

func (m *RelayMetrics) SetClients(admin, preview int) {
	if m == nil {
		return
	}
	m.ConnectedClients.WithLabelValues("admin").Set(float64(admin))
	m.ConnectedClients.WithLabelValues("preview").Set(float64(preview))
}

func (m *RelayMetrics) Broadcast(kind string, deliveries, queueDepth int) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(kind).Inc()
	m.Deliveries.Add(float64(deliveries))
	m.QueueDepth.Set(float64(queueDepth))
}

func (m *RelayMetrics) Evicted(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.WithLabelValues(reason).Add(float64(n))
}

func (m *RelayMetrics) Malformed() {
	if m != nil {
		m.MalformedFrames.Inc()
	}
}

func (m *RelayMetrics) CommandDepth(depth int) {
	if m != nil {
		m.CommandChannelDepth.Set(float64(depth))
	}
}
