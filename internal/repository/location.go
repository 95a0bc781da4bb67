package repository

import (
	"context"

	"towdispatch/internal/domain"
)

// LocationUpdateRepository defines the persistence operations for the
// append-only location update stream. There is deliberately no update or
// delete: rows are immutable once created.
type LocationUpdateRepository interface {
	// Create appends a location update. CreatedAt is server-assigned.
	Create(ctx context.Context, update *domain.LocationUpdate) error

	// ListByBooking retrieves the most recent updates for a booking,
	// newest first, up to limit rows.
	ListByBooking(ctx context.Context, bookingID string, limit int) ([]*domain.LocationUpdate, error)

	// LatestByBooking retrieves the most recent update for a booking, or
	// ErrNotFound when none exist yet.
	LatestByBooking(ctx context.Context, bookingID string) (*domain.LocationUpdate, error)
}
