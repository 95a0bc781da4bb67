package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposed on /metrics. Counters cover the two write funnels
// (bookings in, positions in) and the gauge tracks live websocket
// fan-out so a stuck dashboard shows up as a climbing client count.
var (
	BookingsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "towdispatch_bookings_submitted_total",
		Help: "Bookings accepted through the public funnel.",
	})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "towdispatch_booking_transitions_total",
		Help: "Booking lifecycle transitions by resulting status.",
	}, []string{"status"})

	LocationUpdatesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "towdispatch_location_updates_total",
		Help: "Location updates persisted, by source.",
	}, []string{"source"})

	LocationUpdatesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "towdispatch_location_updates_throttled_total",
		Help: "GPS fixes dropped inside the per-booking rate window.",
	})

	LinkResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "towdispatch_link_resolutions_total",
		Help: "Map link resolution attempts by outcome.",
	}, []string{"outcome"})

	WebsocketClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "towdispatch_websocket_clients",
		Help: "Connected websocket clients by feed.",
	}, []string{"feed"})
)
