// Package metrics holds the Prometheus collectors for the bidding engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "auction"

// Metrics contains the collectors shared by the serializer, scheduler and hub.
type Metrics struct {
	// Accepted bids.
	BidsAccepted prometheus.Counter
	// Rejected bids by reason.
	BidsRejected *prometheus.CounterVec
	// Applied lifecycle transitions by target status.
	Transitions *prometheus.CounterVec
	// Time spent waiting for an auction's serialization point.
	SerializerWait prometheus.Histogram
	// Currently registered realtime subscribers.
	Subscribers prometheus.Gauge
	// Events published to rooms.
	EventsPublished *prometheus.CounterVec
	// Subscribers dropped because their outbound buffer filled up.
	SlowSubscribers prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg skips
// registration, which is what tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "accepted_total",
			Help:      "Number of accepted bids.",
		}),
		BidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "rejected_total",
			Help:      "Number of rejected bids by reason.",
		}, []string{"reason"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Number of applied lifecycle transitions by target status.",
		}, []string{"status"}),
		SerializerWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "serializer",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for an auction's serialization point.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of registered realtime subscribers.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_published_total",
			Help:      "Number of events published to auction rooms by kind.",
		}, []string{"kind"}),
		SlowSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "slow_subscribers_total",
			Help:      "Number of subscribers disconnected for not draining events.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BidsAccepted,
			m.BidsRejected,
			m.Transitions,
			m.SerializerWait,
			m.Subscribers,
			m.EventsPublished,
			m.SlowSubscribers,
		)
	}
	return m
}

// Nop returns collectors that are not registered anywhere.
func Nop() *Metrics {
	return New(nil)
}
