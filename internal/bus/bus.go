package bus

import (
	"context"
	"encoding/json"
	"sync"
)

// Operation is the kind of row change an event describes.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
)

// Table names carried on events.
const (
	TableBookings        = "bookings"
	TableLocationUpdates = "location_updates"
	TableDrivers         = "drivers"
)

// Event is a row-level change notification. Delivery is best-effort:
// consumers must treat the bus as a hint and refetch from the store when
// they need authoritative state.
type Event struct {
	Table string          `json:"table"`
	Op    Operation       `json:"op"`
	Row   json.RawMessage `json:"row"`
}

// Bus is a publish/subscribe change notification mechanism. Filtering is
// resolved at publish time: each event is published to every topic that
// selects it, and subscribers name the concrete topics they want.
type Bus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

// Topic constructors. These are the only filter shapes the consuming
// views need: the driver dashboard watches its own bookings, the public
// tracker watches one booking, its location stream, and its driver.

// TopicBookingsByDriver selects booking inserts/updates for one driver.
func TopicBookingsByDriver(driverID string) string {
	return "cdc:bookings:driver:" + driverID
}

// TopicBookingByID selects updates to one booking.
func TopicBookingByID(bookingID string) string {
	return "cdc:bookings:id:" + bookingID
}

// TopicLocationsByBooking selects location update inserts for one booking.
func TopicLocationsByBooking(bookingID string) string {
	return "cdc:location_updates:booking:" + bookingID
}

// TopicDriverByID selects updates to one driver row.
func TopicDriverByID(driverID string) string {
	return "cdc:drivers:id:" + driverID
}

// Subscription is a handle to a live topic subscription. It is owned by
// exactly one consuming view; the view must call Close on teardown.
// Close is safe to call more than once but unsubscribes exactly once.
type Subscription struct {
	events  chan Event
	closeFn func()
	once    sync.Once
}

// NewSubscription wraps an event channel and a teardown function.
func NewSubscription(events chan Event, closeFn func()) *Subscription {
	return &Subscription{events: events, closeFn: closeFn}
}

// Events returns the receive channel. It is closed after Close, or if
// the underlying transport drops the subscription.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close tears the subscription down. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(s.closeFn)
}
