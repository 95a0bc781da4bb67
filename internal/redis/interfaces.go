package redis

import "context"

// TrackingSessionStoreInterface defines the single-owner tracking
// session operations.
type TrackingSessionStoreInterface interface {
	Start(ctx context.Context, driverID, bookingID string) error
	Active(ctx context.Context, driverID string) (string, bool, error)
	Stop(ctx context.Context, driverID string) error
}

// ThrottleStoreInterface defines the GPS window check.
type ThrottleStoreInterface interface {
	Allow(ctx context.Context, bookingID string) (bool, error)
}

// Ensure concrete types implement interfaces.
var (
	_ TrackingSessionStoreInterface = (*TrackingSessionStore)(nil)
	_ ThrottleStoreInterface        = (*ThrottleStore)(nil)
)
