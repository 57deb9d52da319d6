// Package diagnostics exposes the client's runtime health: prometheus
// counters over the event pipeline and a small HTTP surface for metrics and
// state inspection during long watch runs.
package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
)

// Metrics implements realtime.Sink over a prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal      *prometheus.CounterVec
	protocolDrops    prometheus.Counter
	reconnectsTotal  prometheus.Counter
	connectionStatus *prometheus.GaugeVec
	commandsTotal    *prometheus.CounterVec
}

// NewMetrics creates a Metrics with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stormloop_events_total",
			Help: "Processed realtime events by kind and disposition.",
		}, []string{"kind", "outcome"}),
		protocolDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stormloop_protocol_drops_total",
			Help: "Events dropped before the reducer: unknown names or malformed payloads.",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stormloop_reconnects_total",
			Help: "Reconnect attempts after connection loss.",
		}),
		connectionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stormloop_connection_status",
			Help: "Connection state per namespace: 1 for the current state, 0 otherwise.",
		}, []string{"namespace", "status"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stormloop_commands_total",
			Help: "User commands dispatched on the realtime channel.",
		}, []string{"command"}),
	}
	m.registry.MustRegister(
		m.eventsTotal,
		m.protocolDrops,
		m.reconnectsTotal,
		m.connectionStatus,
		m.commandsTotal,
	)
	return m
}

// Registry returns the backing registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvent counts one reduced event.
func (m *Metrics) RecordEvent(kind brainstorm.Kind, outcome brainstorm.OutcomeKind) {
	m.eventsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

// RecordProtocolDrop counts one event dropped before normalization.
func (m *Metrics) RecordProtocolDrop(string) {
	m.protocolDrops.Inc()
}

// RecordReconnect counts one reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.reconnectsTotal.Inc()
}

// RecordCommand counts one dispatched command.
func (m *Metrics) RecordCommand(command string) {
	m.commandsTotal.WithLabelValues(command).Inc()
}

var connectionStates = []string{"connecting", "connected", "reconnecting", "disconnected", "failed"}

// SetConnectionStatus moves the per-namespace status gauge to the given
// state.
func (m *Metrics) SetConnectionStatus(namespace, status string) {
	for _, state := range connectionStates {
		val := 0.0
		if state == status {
			val = 1.0
		}
		m.connectionStatus.WithLabelValues(namespace, state).Set(val)
	}
}
