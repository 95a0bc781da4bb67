package bus

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// subscriptionBuffer bounds how far a slow consumer can lag before
// events are dropped. The bus is best-effort; consumers refetch.
const subscriptionBuffer = 64

// RedisBus implements Bus over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus creates a new RedisBus.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

var _ Bus = (*RedisBus)(nil)

// Publish sends an event to a single topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, data).Err()
}

// Subscribe opens a subscription covering all the given topics. The
// returned handle must be closed by the owning view on teardown.
func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topics...)

	// Force the subscribe round-trip so a broken connection surfaces
	// here rather than as a silently empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	events := make(chan Event, subscriptionBuffer)

	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("bus: dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case events <- event:
			default:
				// Consumer is lagging; drop rather than block the pump.
				log.Printf("bus: dropping event for slow consumer on %s", msg.Channel)
			}
		}
	}()

	return NewSubscription(events, func() {
		_ = pubsub.Close()
	}), nil
}
