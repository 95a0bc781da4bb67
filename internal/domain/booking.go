package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAssigned  BookingStatus = "assigned"
	BookingStatusRefused   BookingStatus = "refused"
	BookingStatusCompleted BookingStatus = "completed"

	// Intermediate display states. No driver action produces them yet;
	// they are accepted wherever an in-progress booking is expected.
	BookingStatusDispatched BookingStatus = "dispatched"
	BookingStatusEnRoute    BookingStatus = "en_route"
	BookingStatusArrived    BookingStatus = "arrived"
)

// ServiceType represents the kind of towing service requested.
type ServiceType string

const (
	ServiceEmergency ServiceType = "emergency"
	ServiceFlatbed   ServiceType = "flatbed"
	ServiceBattery   ServiceType = "battery"
	ServiceRoadside  ServiceType = "roadside"
	ServiceLockout   ServiceType = "lockout"
	ServiceRecovery  ServiceType = "recovery"
)

// Timing represents how soon the customer needs the service.
type Timing string

const (
	TimingNow       Timing = "now"
	TimingOneHour   Timing = "1hour"
	TimingToday     Timing = "today"
	TimingTomorrow  Timing = "tomorrow"
	TimingScheduled Timing = "scheduled"
)

// Booking represents a towing service request.
type Booking struct {
	ID             string
	TrackingToken  string // opaque public lookup key, never derived from ID
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	ServiceType    ServiceType
	Timing         Timing
	Notes          string
	PickupLocation string
	PickupLat      float64
	PickupLng      float64
	DistanceKm     float64 // computed at submission, immutable thereafter
	PriceLow       float64 // advisory estimate, never authoritative
	PriceHigh      float64
	Status         BookingStatus
	DriverID       string
	CreatedAt      time.Time
	AssignedAt     time.Time
	CompletedAt    time.Time
}

// InProgress reports whether the booking is past acceptance but not yet
// completed. The intermediate display states count as in-progress.
func (s BookingStatus) InProgress() bool {
	switch s {
	case BookingStatusAssigned, BookingStatusDispatched, BookingStatusEnRoute, BookingStatusArrived:
		return true
	}
	return false
}

// Terminal reports whether no further driver action can change the status.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusRefused || s == BookingStatusCompleted
}

// CanAccept reports whether the booking can transition to assigned.
func (b *Booking) CanAccept() bool {
	return b.Status == BookingStatusPending
}

// CanRefuse reports whether the booking can transition to refused.
func (b *Booking) CanRefuse() bool {
	return b.Status == BookingStatusPending
}

// CanComplete reports whether the booking can transition to completed.
func (b *Booking) CanComplete() bool {
	return b.Status.InProgress()
}

// KnownServiceType reports whether s is one of the recognized service types.
// Unknown service types are still priceable; pricing falls back to the
// emergency multiplier (fail-open).
func KnownServiceType(s ServiceType) bool {
	switch s {
	case ServiceEmergency, ServiceFlatbed, ServiceBattery, ServiceRoadside, ServiceLockout, ServiceRecovery:
		return true
	}
	return false
}

// KnownTiming reports whether t is one of the recognized timing selections.
func KnownTiming(t Timing) bool {
	switch t {
	case TimingNow, TimingOneHour, TimingToday, TimingTomorrow, TimingScheduled:
		return true
	}
	return false
}
