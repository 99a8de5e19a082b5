// Package metrics exposes the P2P dispatcher's Prometheus instrumentation:
// how many peers are connected, how handshakes and disconnects break down,
// and how deep each peer's outbound queue runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles the dispatcher's metric vectors. The zero value is not
// usable; construct with New or NewWithRegisterer.
type Collector struct {
	PeersActive          prometheus.Gauge
	HandshakesCompleted  prometheus.Counter
	Disconnects          *prometheus.CounterVec
	MisbehaviorByReason  *prometheus.CounterVec
	// OutboundQueueDepth is registered but not observed anywhere in this
	// module: the dispatcher and Peer never record into it.
	OutboundQueueDepth   prometheus.Histogram
}

// New builds a Collector and registers it with the default Prometheus
// registerer, following the same naming convention
// (subsystem_what_unit_total) the teacher's own metrics use.
func New() *Collector {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer builds a Collector registered against reg, which lets
// tests use a private registry instead of polluting the global one.
func NewWithRegisterer(reg prometheus.Registerer) *Collector {
	c := &Collector{
		PeersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "murmel",
			Subsystem: "p2p",
			Name:      "peers_active",
			Help:      "Number of peers currently registered with the dispatcher.",
		}),
		HandshakesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmel",
			Subsystem: "p2p",
			Name:      "handshakes_completed_total",
			Help:      "Number of version/verack handshakes that completed successfully.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "murmel",
			Subsystem: "p2p",
			Name:      "disconnects_total",
			Help:      "Number of peer disconnects, labeled by cause.",
		}, []string{"cause"}),
		MisbehaviorByReason: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "murmel",
			Subsystem: "p2p",
			Name:      "misbehavior_total",
			Help:      "Number of protocol misbehaviors observed, labeled by reason.",
		}, []string{"reason"}),
		OutboundQueueDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "murmel",
			Subsystem: "p2p",
			Name:      "outbound_queue_depth",
			Help:      "Number of messages queued in a peer's outbound mailbox at send time.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(c.PeersActive, c.HandshakesCompleted, c.Disconnects, c.MisbehaviorByReason, c.OutboundQueueDepth)
	}
	return c
}
