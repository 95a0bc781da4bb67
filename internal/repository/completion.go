package repository

import (
	"context"
	"time"
)

// CompletionStore applies a booking completion as one atomic unit: the
// guarded status transition together with, when requested, the clearing
// of the driver's live position. Either both land or neither does.
type CompletionStore interface {
	Complete(ctx context.Context, bookingID, driverID string, completedAt time.Time, clearPosition bool) error
}
