// Package metrics exposes prometheus instrumentation for listeners,
// relayed traffic, and roster fetches. All recording methods are nil-safe
// so instrumentation stays optional.
package metrics

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the process-wide collectors.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal    *prometheus.CounterVec
	activeConnections   *prometheus.GaugeVec
	bytesRelayed        *prometheus.CounterVec
	rosterFetches       *prometheus.CounterVec
	bindingsProvisioned *prometheus.CounterVec
	bindFailures        *prometheus.CounterVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopgate_connections_total",
			Help: "Accepted inbound connections.",
		}, []string{"region", "kind"}),
		activeConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loopgate_active_connections",
			Help: "Currently bridged connection pairs.",
		}, []string{"region"}),
		bytesRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopgate_bytes_relayed_total",
			Help: "Bytes relayed on the client side of bridged connections.",
		}, []string{"region", "direction"}),
		rosterFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopgate_roster_fetches_total",
			Help: "Roster fetch attempts by result.",
		}, []string{"region", "result"}),
		bindingsProvisioned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopgate_bindings_provisioned_total",
			Help: "Server bindings successfully provisioned.",
		}, []string{"region"}),
		bindFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopgate_listener_bind_failures_total",
			Help: "Listener bind failures, skipped without aborting siblings.",
		}, []string{"region"}),
	}
}

// Registry returns the underlying registry, for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ConnOpened records one accepted connection of the given kind.
func (m *Metrics) ConnOpened(region, kind string) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(region, kind).Inc()
	m.activeConnections.WithLabelValues(region).Inc()
}

// ConnClosed records one torn-down connection pair.
func (m *Metrics) ConnClosed(region string) {
	if m == nil {
		return
	}
	m.activeConnections.WithLabelValues(region).Dec()
}

// AddBytes records relayed bytes for a direction ("in" or "out").
func (m *Metrics) AddBytes(region, direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesRelayed.WithLabelValues(region, direction).Add(float64(n))
}

// RosterFetch records one fetch attempt.
func (m *Metrics) RosterFetch(region string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.rosterFetches.WithLabelValues(region, result).Inc()
}

// BindingProvisioned records one provisioned binding.
func (m *Metrics) BindingProvisioned(region string) {
	if m == nil {
		return
	}
	m.bindingsProvisioned.WithLabelValues(region).Inc()
}

// BindFailure records one skipped binding.
func (m *Metrics) BindFailure(region string) {
	if m == nil {
		return
	}
	m.bindFailures.WithLabelValues(region).Inc()
}

// CountConn wraps conn so client-side reads and writes feed the byte
// counters for region. Returns conn unchanged when m is nil.
func (m *Metrics) CountConn(conn net.Conn, region string) net.Conn {
	if m == nil {
		return conn
	}
	return &countingConn{Conn: conn, metrics: m, region: region}
}

type countingConn struct {
	net.Conn
	metrics *Metrics
	region  string
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.metrics.AddBytes(c.region, "in", n)
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.metrics.AddBytes(c.region, "out", n)
	return n, err
}
