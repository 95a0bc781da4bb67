package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GPSWindow is the minimum spacing between persisted GPS updates for a
// booking. The window is enforced server-side so a buggy or hostile
// client cannot flood the location stream; manual link shares bypass it.
const GPSWindow = 10 * time.Second

// ThrottleStore enforces the per-booking GPS update window in Redis.
type ThrottleStore struct {
	client *redis.Client
}

// NewThrottleStore creates a new ThrottleStore.
func NewThrottleStore(client *redis.Client) *ThrottleStore {
	return &ThrottleStore{client: client}
}

// Allow reports whether a GPS update for the booking may be persisted
// now. The first caller in each window wins; later callers within the
// window are throttled.
func (s *ThrottleStore) Allow(ctx context.Context, bookingID string) (bool, error) {
	key := fmt.Sprintf("gps:window:%s", bookingID)
	return s.client.SetNX(ctx, key, "1", GPSWindow).Result()
}
