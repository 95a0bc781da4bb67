package postgres

import (
	"context"
	"database/sql"
	"errors"

	"towdispatch/internal/domain"
	"towdispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(pin_code, ''), is_active, current_lat, current_lng`

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (id, name, email, phone, pin_code, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID, driver.Name, driver.Email, driver.Phone, driver.PinCode, driver.IsActive)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	return scanDriver(r.q.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an active driver by email.
func (r *DriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE email = $1 AND is_active = true`
	return scanDriver(r.q.QueryRowContext(ctx, query, email))
}

// GetByName retrieves a driver by name.
func (r *DriverRepository) GetByName(ctx context.Context, name string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE name = $1`
	return scanDriver(r.q.QueryRowContext(ctx, query, name))
}

// UpdatePosition sets the driver's live position.
func (r *DriverRepository) UpdatePosition(ctx context.Context, id string, lat, lng float64) error {
	query := `UPDATE drivers SET current_lat = $1, current_lng = $2 WHERE id = $3`
	return r.exec(ctx, query, lat, lng, id)
}

// ClearPosition nulls the driver's live position.
func (r *DriverRepository) ClearPosition(ctx context.Context, id string) error {
	query := `UPDATE drivers SET current_lat = NULL, current_lng = NULL WHERE id = $1`
	return r.exec(ctx, query, id)
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

func (r *DriverRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanDriver(row *sql.Row) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng sql.NullFloat64

	err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.Email,
		&driver.Phone,
		&driver.PinCode,
		&driver.IsActive,
		&lat,
		&lng,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if lat.Valid {
		driver.CurrentLat = &lat.Float64
	}
	if lng.Valid {
		driver.CurrentLng = &lng.Float64
	}

	return &driver, nil
}
