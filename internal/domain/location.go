package domain

import "time"

// LocationSource represents where a location update came from.
type LocationSource string

const (
	SourceGPS        LocationSource = "gps"
	SourceGoogleMaps LocationSource = "google_maps"
	SourceWhatsApp   LocationSource = "whatsapp"
)

// LocationUpdate is a single driver position tied to a booking.
// Rows are append-only; the store never updates or deletes one. The
// current position for display is the most recent row by CreatedAt.
type LocationUpdate struct {
	ID        string
	BookingID string
	DriverID  string
	Lat       float64
	Lng       float64
	Source    LocationSource
	CreatedAt time.Time
}
