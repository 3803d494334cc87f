package controller

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the prometheus collectors a Server exposes about its
// accepted, closed and rejected connections and its multipart
// reassembly restarts. A nil
// *Metrics disables instrumentation entirely; every call site on the
// hot path guards against it.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsRejected prometheus.Counter
	multipartRestarts   prometheus.Counter
}

// NewMetrics registers a fresh set of collectors with reg and returns
// them. Passing prometheus.DefaultRegisterer is the usual choice for a
// standalone binary.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofcore",
			Subsystem: "controller",
			Name:      "connections_accepted_total",
			Help:      "TCP connections accepted by the listener loop.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofcore",
			Subsystem: "controller",
			Name:      "connections_closed_total",
			Help:      "Connections torn down, for any reason, after being accepted.",
		}),
		connectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofcore",
			Subsystem: "controller",
			Name:      "connections_rejected_total",
			Help:      "Connections dropped during handshake because no nexus claimed them.",
		}),
		multipartRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofcore",
			Subsystem: "controller",
			Name:      "multipart_reassembly_restarts_total",
			Help:      "Multipart reassembly sequences abandoned due to an out-of-sequence fragment.",
		}),
	}

	reg.MustRegister(m.connectionsAccepted, m.connectionsClosed, m.connectionsRejected, m.multipartRestarts)
	return m
}
