package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"towdispatch/internal/domain"
	"towdispatch/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

const bookingColumns = `id, tracking_token, customer_name, customer_phone, COALESCE(customer_email, ''),
	service_type, timing, COALESCE(notes, ''), pickup_location, pickup_lat, pickup_lng,
	distance_km, COALESCE(estimated_price_low, 0), COALESCE(estimated_price_high, 0),
	status, COALESCE(driver_id, ''), created_at, assigned_at, completed_at`

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `INSERT INTO bookings (
		id, tracking_token, customer_name, customer_phone, customer_email,
		service_type, timing, notes, pickup_location, pickup_lat, pickup_lng,
		distance_km, estimated_price_low, estimated_price_high,
		status, driver_id, created_at
	) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), $17)`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID, booking.TrackingToken, booking.CustomerName, booking.CustomerPhone, booking.CustomerEmail,
		booking.ServiceType, booking.Timing, booking.Notes, booking.PickupLocation, booking.PickupLat, booking.PickupLng,
		booking.DistanceKm, booking.PriceLow, booking.PriceHigh,
		booking.Status, booking.DriverID, booking.CreatedAt,
	)
	return err
}

// GetByID retrieves a booking by internal ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByTrackingToken retrieves a booking by its public tracking token.
func (r *BookingRepository) GetByTrackingToken(ctx context.Context, token string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tracking_token = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, token))
}

// ListByDriver retrieves a driver's bookings in the given statuses, newest first.
func (r *BookingRepository) ListByDriver(ctx context.Context, driverID string, statuses []domain.BookingStatus) ([]*domain.Booking, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE driver_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, driverID, pq.Array(values))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// MarkAssigned transitions pending → assigned, setting assigned_at in the
// same statement as the status.
func (r *BookingRepository) MarkAssigned(ctx context.Context, id string, assignedAt time.Time) error {
	query := `UPDATE bookings SET status = $1, assigned_at = $2 WHERE id = $3 AND status = $4`
	return r.guardedUpdate(ctx, query, domain.BookingStatusAssigned, assignedAt, id, domain.BookingStatusPending)
}

// MarkRefused transitions pending → refused.
func (r *BookingRepository) MarkRefused(ctx context.Context, id string) error {
	query := `UPDATE bookings SET status = $1 WHERE id = $2 AND status = $3`
	return r.guardedUpdate(ctx, query, domain.BookingStatusRefused, id, domain.BookingStatusPending)
}

// MarkCompleted transitions an in-progress booking → completed, setting
// completed_at in the same statement as the status.
func (r *BookingRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	inProgress := []string{
		string(domain.BookingStatusAssigned),
		string(domain.BookingStatusDispatched),
		string(domain.BookingStatusEnRoute),
		string(domain.BookingStatusArrived),
	}
	query := `UPDATE bookings SET status = $1, completed_at = $2 WHERE id = $3 AND status = ANY($4)`
	return r.guardedUpdate(ctx, query, domain.BookingStatusCompleted, completedAt, id, pq.Array(inProgress))
}

// guardedUpdate runs a status transition and maps a guard miss to
// ErrStaleState. Zero rows means the booking either does not exist or
// was no longer in the expected prior state; both must not report
// success.
func (r *BookingRepository) guardedUpdate(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrStaleState
	}

	return nil
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BookingRepository) scanOne(row *sql.Row) (*domain.Booking, error) {
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

func scanBooking(s rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var assignedAt, completedAt sql.NullTime

	err := s.Scan(
		&booking.ID,
		&booking.TrackingToken,
		&booking.CustomerName,
		&booking.CustomerPhone,
		&booking.CustomerEmail,
		&booking.ServiceType,
		&booking.Timing,
		&booking.Notes,
		&booking.PickupLocation,
		&booking.PickupLat,
		&booking.PickupLng,
		&booking.DistanceKm,
		&booking.PriceLow,
		&booking.PriceHigh,
		&booking.Status,
		&booking.DriverID,
		&booking.CreatedAt,
		&assignedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedAt.Valid {
		booking.AssignedAt = assignedAt.Time
	}
	if completedAt.Valid {
		booking.CompletedAt = completedAt.Time
	}

	return &booking, nil
}
