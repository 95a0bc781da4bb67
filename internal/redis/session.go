package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TrackingSessionStore records which booking a driver is actively
// tracking. The driver's live position is shared mutable state; making
// the session an explicit single-owner resource means a second tracking
// start for the same driver supersedes the first instead of silently
// interleaving writes. The stored booking ID doubles as a fencing token:
// a write from a superseded or stopped session no longer matches and is
// rejected.
type TrackingSessionStore struct {
	client *redis.Client
}

// NewTrackingSessionStore creates a new TrackingSessionStore.
func NewTrackingSessionStore(client *redis.Client) *TrackingSessionStore {
	return &TrackingSessionStore{client: client}
}

func sessionKey(driverID string) string {
	return fmt.Sprintf("tracking:driver:%s", driverID)
}

// Start claims the driver's tracking session for a booking, superseding
// any session already running for that driver.
func (s *TrackingSessionStore) Start(ctx context.Context, driverID, bookingID string) error {
	return s.client.Set(ctx, sessionKey(driverID), bookingID, 0).Err()
}

// Active returns the booking currently being tracked by the driver, or
// ok=false when no session is running.
func (s *TrackingSessionStore) Active(ctx context.Context, driverID string) (string, bool, error) {
	bookingID, err := s.client.Get(ctx, sessionKey(driverID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return bookingID, true, nil
}

// Stop releases the driver's tracking session.
func (s *TrackingSessionStore) Stop(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, sessionKey(driverID)).Err()
}
