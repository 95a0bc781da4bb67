package handler

import (
	"time"

	"towdispatch/internal/domain"
)

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID             string  `json:"id"`
	CustomerName   string  `json:"customer_name"`
	CustomerPhone  string  `json:"customer_phone"`
	CustomerEmail  string  `json:"customer_email,omitempty"`
	ServiceType    string  `json:"service_type"`
	Timing         string  `json:"timing"`
	Notes          string  `json:"notes,omitempty"`
	PickupLocation string  `json:"pickup_location"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DistanceKm     float64 `json:"distance_km"`
	PriceLow       float64 `json:"price_low"`
	PriceHigh      float64 `json:"price_high"`
	Status         string  `json:"status"`
	DriverID       string  `json:"driver_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	AssignedAt     string  `json:"assigned_at,omitempty"`
	CompletedAt    string  `json:"completed_at,omitempty"`
}

// DriverResponse is the public representation of a driver: identity,
// phone for the customer to call, and the live position when tracking
// is on. Credentials never leave the server.
type DriverResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	CurrentLat *float64 `json:"current_lat"`
	CurrentLng *float64 `json:"current_lng"`
}

// LocationResponse is the HTTP representation of one location update.
type LocationResponse struct {
	ID        string  `json:"id"`
	BookingID string  `json:"booking_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		CustomerName:   b.CustomerName,
		CustomerPhone:  b.CustomerPhone,
		CustomerEmail:  b.CustomerEmail,
		ServiceType:    string(b.ServiceType),
		Timing:         string(b.Timing),
		Notes:          b.Notes,
		PickupLocation: b.PickupLocation,
		PickupLat:      b.PickupLat,
		PickupLng:      b.PickupLng,
		DistanceKm:     b.DistanceKm,
		PriceLow:       b.PriceLow,
		PriceHigh:      b.PriceHigh,
		Status:         string(b.Status),
		DriverID:       b.DriverID,
		CreatedAt:      formatTime(b.CreatedAt),
		AssignedAt:     formatTime(b.AssignedAt),
		CompletedAt:    formatTime(b.CompletedAt),
	}
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:         d.ID,
		Name:       d.Name,
		Phone:      d.Phone,
		CurrentLat: d.CurrentLat,
		CurrentLng: d.CurrentLng,
	}
}

func toLocationResponse(u *domain.LocationUpdate) LocationResponse {
	return LocationResponse{
		ID:        u.ID,
		BookingID: u.BookingID,
		Lat:       u.Lat,
		Lng:       u.Lng,
		Source:    string(u.Source),
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
