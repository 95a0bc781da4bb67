package postgres

import (
	"context"
	"database/sql"
	"errors"

	"towdispatch/internal/domain"
	"towdispatch/internal/repository"
)

// LocationUpdateRepository is a PostgreSQL implementation of
// repository.LocationUpdateRepository.
type LocationUpdateRepository struct {
	q Querier
}

// NewLocationUpdateRepository creates a new PostgreSQL location update repository.
func NewLocationUpdateRepository(db *sql.DB) *LocationUpdateRepository {
	return &LocationUpdateRepository{q: db}
}

// NewLocationUpdateRepositoryWithTx creates a location update repository using a transaction.
func NewLocationUpdateRepositoryWithTx(tx *sql.Tx) *LocationUpdateRepository {
	return &LocationUpdateRepository{q: tx}
}

var _ repository.LocationUpdateRepository = (*LocationUpdateRepository)(nil)

// Create appends a location update. created_at is assigned by the
// database so ordering reflects server time, not device clocks.
func (r *LocationUpdateRepository) Create(ctx context.Context, update *domain.LocationUpdate) error {
	query := `INSERT INTO location_updates (id, booking_id, driver_id, lat, lng, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	return r.q.QueryRowContext(ctx, query,
		update.ID, update.BookingID, update.DriverID, update.Lat, update.Lng, update.Source,
	).Scan(&update.CreatedAt)
}

// ListByBooking retrieves the most recent updates for a booking, newest first.
func (r *LocationUpdateRepository) ListByBooking(ctx context.Context, bookingID string, limit int) ([]*domain.LocationUpdate, error) {
	query := `SELECT id, booking_id, driver_id, lat, lng, source, created_at
		FROM location_updates
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, bookingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []*domain.LocationUpdate
	for rows.Next() {
		var u domain.LocationUpdate
		if err := rows.Scan(&u.ID, &u.BookingID, &u.DriverID, &u.Lat, &u.Lng, &u.Source, &u.CreatedAt); err != nil {
			return nil, err
		}
		updates = append(updates, &u)
	}
	return updates, rows.Err()
}

// LatestByBooking retrieves the most recent update for a booking.
func (r *LocationUpdateRepository) LatestByBooking(ctx context.Context, bookingID string) (*domain.LocationUpdate, error) {
	query := `SELECT id, booking_id, driver_id, lat, lng, source, created_at
		FROM location_updates
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var u domain.LocationUpdate
	err := r.q.QueryRowContext(ctx, query, bookingID).Scan(
		&u.ID, &u.BookingID, &u.DriverID, &u.Lat, &u.Lng, &u.Source, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
