package bus

import (
	"encoding/json"

	"towdispatch/internal/domain"
)

// Row payloads mirror the store's column naming so dashboard and tracker
// clients decode one shape for both REST fetches and bus events.

// BookingRow is the wire form of a booking row.
type BookingRow struct {
	ID             string  `json:"id"`
	TrackingToken  string  `json:"tracking_token,omitempty"`
	CustomerName   string  `json:"customer_name"`
	CustomerPhone  string  `json:"customer_phone"`
	ServiceType    string  `json:"service_type"`
	Timing         string  `json:"timing"`
	PickupLocation string  `json:"pickup_location"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DistanceKm     float64 `json:"distance_km"`
	PriceLow       float64 `json:"estimated_price_low,omitempty"`
	PriceHigh      float64 `json:"estimated_price_high,omitempty"`
	Status         string  `json:"status"`
	DriverID       string  `json:"driver_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	AssignedAt     string  `json:"assigned_at,omitempty"`
	CompletedAt    string  `json:"completed_at,omitempty"`
}

// DriverRow is the wire form of a driver row. Position fields are
// pointers so a cleared position serializes as explicit nulls, which is
// the marker-removal signal for tracker clients.
type DriverRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	CurrentLat *float64 `json:"current_lat"`
	CurrentLng *float64 `json:"current_lng"`
}

// LocationUpdateRow is the wire form of a location update row.
type LocationUpdateRow struct {
	ID        string  `json:"id"`
	BookingID string  `json:"booking_id"`
	DriverID  string  `json:"driver_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"created_at"`
}

const rowTimeFormat = "2006-01-02T15:04:05Z07:00"

// NewBookingEvent builds an event carrying a booking row. The tracking
// token is stripped: bus consumers already hold whatever key authorized
// their subscription, and the token must never leak to the driver feed.
func NewBookingEvent(op Operation, b *domain.Booking) Event {
	row := BookingRow{
		ID:             b.ID,
		CustomerName:   b.CustomerName,
		CustomerPhone:  b.CustomerPhone,
		ServiceType:    string(b.ServiceType),
		Timing:         string(b.Timing),
		PickupLocation: b.PickupLocation,
		PickupLat:      b.PickupLat,
		PickupLng:      b.PickupLng,
		DistanceKm:     b.DistanceKm,
		PriceLow:       b.PriceLow,
		PriceHigh:      b.PriceHigh,
		Status:         string(b.Status),
		DriverID:       b.DriverID,
		CreatedAt:      b.CreatedAt.Format(rowTimeFormat),
	}
	if !b.AssignedAt.IsZero() {
		row.AssignedAt = b.AssignedAt.Format(rowTimeFormat)
	}
	if !b.CompletedAt.IsZero() {
		row.CompletedAt = b.CompletedAt.Format(rowTimeFormat)
	}
	return marshalEvent(TableBookings, op, row)
}

// NewDriverEvent builds an event carrying a driver row. Credentials and
// email never ride the bus.
func NewDriverEvent(op Operation, d *domain.Driver) Event {
	row := DriverRow{
		ID:         d.ID,
		Name:       d.Name,
		Phone:      d.Phone,
		CurrentLat: d.CurrentLat,
		CurrentLng: d.CurrentLng,
	}
	return marshalEvent(TableDrivers, op, row)
}

// NewLocationEvent builds an event carrying a location update row.
func NewLocationEvent(op Operation, u *domain.LocationUpdate) Event {
	row := LocationUpdateRow{
		ID:        u.ID,
		BookingID: u.BookingID,
		DriverID:  u.DriverID,
		Lat:       u.Lat,
		Lng:       u.Lng,
		Source:    string(u.Source),
		CreatedAt: u.CreatedAt.Format(rowTimeFormat),
	}
	return marshalEvent(TableLocationUpdates, op, row)
}

func marshalEvent(table string, op Operation, row any) Event {
	data, err := json.Marshal(row)
	if err != nil {
		// Row types are plain structs; this cannot fail at runtime.
		data = []byte("{}")
	}
	return Event{Table: table, Op: op, Row: data}
}
