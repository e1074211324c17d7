// Package metrics exposes Prometheus counters for the status pipeline and
// summarises the persisted address history.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netstatus"

// Observation outcomes.
const (
	OutcomePublished    = "published"
	OutcomeDisconnected = "disconnected"
	OutcomeQueryError   = "query_error"
	OutcomeEncodeError  = "encode_error"
)

// Collector groups the service counters. A nil *Collector is valid and
// records nothing.
type Collector struct {
	notifications *prometheus.CounterVec
	observations  *prometheus.CounterVec
	published     prometheus.Counter
	dropped       prometheus.Counter
	forwards      *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Connectivity change notifications received, by source.",
		}, []string{"source"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Network observations, by outcome.",
		}, []string{"outcome"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Status messages emitted on the bus.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Deliveries skipped because a subscriber buffer was full.",
		}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_total",
			Help:      "Status messages forwarded to peers, by peer and result.",
		}, []string{"peer", "result"}),
	}

	for _, col := range []prometheus.Collector{c.notifications, c.observations, c.published, c.dropped, c.forwards} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Notification counts a change notification from source.
func (c *Collector) Notification(source string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(source).Inc()
}

// Observation counts a monitor invocation by outcome.
func (c *Collector) Observation(outcome string) {
	if c == nil {
		return
	}
	c.observations.WithLabelValues(outcome).Inc()
}

// Published implements bus.Observer.
func (c *Collector) Published() {
	if c == nil {
		return
	}
	c.published.Inc()
}

// Dropped implements bus.Observer.
func (c *Collector) Dropped() {
	if c == nil {
		return
	}
	c.dropped.Inc()
}

// Forward counts a forwarding attempt to peer.
func (c *Collector) Forward(peer string, ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.forwards.WithLabelValues(peer, result).Inc()
}
