package repository

import (
	"context"

	"towdispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByEmail retrieves an active driver by email.
	GetByEmail(ctx context.Context, email string) (*domain.Driver, error)

	// GetByName retrieves a driver by name. Used to resolve the default
	// driver preassigned to every new booking.
	GetByName(ctx context.Context, name string) (*domain.Driver, error)

	// UpdatePosition sets the driver's live position.
	UpdatePosition(ctx context.Context, id string, lat, lng float64) error

	// ClearPosition nulls the driver's live position. This is the signal
	// consumers use to remove a live marker.
	ClearPosition(ctx context.Context, id string) error
}
