// Package metrics exposes Prometheus collectors for the signaling
// server. Grounded on isqad-livelook-sfu's internal/telemetry package,
// adapted from package-level globals registered in an init() function
// to an explicit struct constructed once in internal/runtime and
// threaded through the components that update it — package-level
// mutable state is excluded by spec.md §9's dependency-injection
// substitution for singleton managers.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "gamestream_sfu"

// Metrics bundles every collector this server exposes. Callers
// register it on whatever prometheus.Registerer they own (typically a
// fresh *prometheus.Registry held by internal/runtime, not the global
// DefaultRegisterer).
type Metrics struct {
	ConnectedPeers  prometheus.Gauge
	Rooms           prometheus.Gauge
	GamepadSlots    prometheus.Gauge
	DroppedPackets  *prometheus.CounterVec
	SignalingErrors *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "connected",
			Help:      "Number of peers in the CONNECTED WebRTC state, as of the last signaling disconnect.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "active",
			Help:      "Number of active rooms, as of the last signaling disconnect.",
		}),
		GamepadSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gamepad",
			Name:      "slots_in_use",
			Help:      "Server gamepad slots claimed across all rooms. Registered but not updated by any component, so it stays at 0.",
		}),
		DroppedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "dropped_packets_total",
			Help:      "Packets dropped, labeled by reason.",
		}, []string{"reason"}),
		SignalingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "errors_total",
			Help:      "Signaling errors sent to clients, labeled by code.",
		}, []string{"code"}),
	}
}

// Register attaches every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ConnectedPeers,
		m.Rooms,
		m.GamepadSlots,
		m.DroppedPackets,
		m.SignalingErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
