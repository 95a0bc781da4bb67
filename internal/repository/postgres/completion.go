package postgres

import (
	"context"
	"database/sql"
	"time"

	"towdispatch/internal/repository"
)

// CompletionStore runs the completion transition and the optional driver
// position clear in a single transaction.
type CompletionStore struct {
	db *sql.DB
}

// NewCompletionStore creates a new CompletionStore.
func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func (s *CompletionStore) Complete(ctx context.Context, bookingID, driverID string, completedAt time.Time, clearPosition bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = NewBookingRepositoryWithTx(tx).MarkCompleted(ctx, bookingID, completedAt); err != nil {
		return err
	}

	if clearPosition {
		if err = NewDriverRepositoryWithTx(tx).ClearPosition(ctx, driverID); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

var _ repository.CompletionStore = (*CompletionStore)(nil)
