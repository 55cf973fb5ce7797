// Package metrics exposes prometheus instrumentation for the chat hub.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wirechat"

// Connection outcomes.
const (
	ConnAccepted = "accepted"
	ConnBanned   = "banned"
	ConnCapacity = "capacity"
)

// Disconnect reasons.
const (
	ReasonClosed      = "closed"
	ReasonKicked      = "kicked"
	ReasonBanned      = "banned"
	ReasonNameTaken   = "name_taken"
	ReasonInvalidName = "invalid_name"
	ReasonShutdown    = "shutdown"
)

// Metrics holds the hub collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connections   *prometheus.CounterVec
	disconnects   *prometheus.CounterVec
	adminCommands *prometheus.CounterVec
	messages      prometheus.Counter
	relayedBytes  prometheus.Counter
	clients       prometheus.Gauge
	bans          prometheus.Gauge
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Incoming TCP connections by outcome (accepted, banned, capacity).",
		}, []string{"result"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Registered clients removed from the room by reason.",
		}, []string{"reason"}),
		adminCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_commands_total",
			Help:      "Operator console commands by command name and result.",
		}, []string{"command", "result"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Chat messages read from named clients and broadcast to the room.",
		}),
		relayedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_bytes_total",
			Help:      "Payload bytes of relayed chat messages.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "Clients currently registered in the room.",
		}),
		bans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "banned_ips",
			Help:      "IP addresses currently in the ban list.",
		}),
	}

	m.registry.MustRegister(
		m.connections,
		m.disconnects,
		m.adminCommands,
		m.messages,
		m.relayedBytes,
		m.clients,
		m.bans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Connection(result string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(result).Inc()
}

func (m *Metrics) Disconnect(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) AdminCommand(command, result string) {
	if m == nil {
		return
	}
	m.adminCommands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) Relayed(size int) {
	if m == nil {
		return
	}
	m.messages.Inc()
	m.relayedBytes.Add(float64(size))
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

func (m *Metrics) SetBans(n int) {
	if m == nil {
		return
	}
	m.bans.Set(float64(n))
}
