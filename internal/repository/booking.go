package repository

import (
	"context"
	"time"

	"towdispatch/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
//
// Status transitions are expressed as guarded single-statement updates:
// the status and its timestamp are set together, and the update only
// applies when the row is still in an expected prior state. A guard
// miss surfaces as ErrStaleState so callers never report success for a
// write that did not happen.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by internal ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByTrackingToken retrieves a booking by its public tracking token.
	GetByTrackingToken(ctx context.Context, token string) (*domain.Booking, error)

	// ListByDriver retrieves a driver's bookings in the given statuses,
	// newest first.
	ListByDriver(ctx context.Context, driverID string, statuses []domain.BookingStatus) ([]*domain.Booking, error)

	// MarkAssigned transitions pending → assigned, setting assigned_at
	// atomically with the status.
	MarkAssigned(ctx context.Context, id string, assignedAt time.Time) error

	// MarkRefused transitions pending → refused.
	MarkRefused(ctx context.Context, id string) error

	// MarkCompleted transitions an in-progress booking → completed,
	// setting completed_at atomically with the status.
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
}
