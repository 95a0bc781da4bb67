package service

import (
	"context"
	"log"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
)

// Bus publishing is best-effort everywhere: a failed publish is logged
// and the operation that triggered it still succeeds. Consumers tolerate
// gaps by refetching over REST.

func publishBookingEvent(ctx context.Context, b bus.Bus, op bus.Operation, booking *domain.Booking) {
	event := bus.NewBookingEvent(op, booking)
	topics := []string{bus.TopicBookingByID(booking.ID)}
	if booking.DriverID != "" {
		topics = append(topics, bus.TopicBookingsByDriver(booking.DriverID))
	}
	for _, topic := range topics {
		if err := b.Publish(ctx, topic, event); err != nil {
			log.Printf("bus: booking %s %s on %s: %v", booking.ID, op, topic, err)
		}
	}
}

func publishDriverEvent(ctx context.Context, b bus.Bus, driver *domain.Driver) {
	event := bus.NewDriverEvent(bus.OpUpdate, driver)
	topic := bus.TopicDriverByID(driver.ID)
	if err := b.Publish(ctx, topic, event); err != nil {
		log.Printf("bus: driver %s update on %s: %v", driver.ID, topic, err)
	}
}

func publishLocationEvent(ctx context.Context, b bus.Bus, update *domain.LocationUpdate) {
	event := bus.NewLocationEvent(bus.OpInsert, update)
	topic := bus.TopicLocationsByBooking(update.BookingID)
	if err := b.Publish(ctx, topic, event); err != nil {
		log.Printf("bus: location insert for booking %s on %s: %v", update.BookingID, topic, err)
	}
}
