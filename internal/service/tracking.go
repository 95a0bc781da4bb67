package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/geo"
	"towdispatch/internal/redis"
	"towdispatch/internal/repository"
)

// TrackingService records driver positions against a booking. GPS fixes
// go through the per-booking rate window and require a live tracking
// session; manual map links bypass both and never touch the driver's
// live marker.
type TrackingService struct {
	driverRepo   repository.DriverRepository
	bookingRepo  repository.BookingRepository
	locationRepo repository.LocationUpdateRepository
	sessions     redis.TrackingSessionStoreInterface
	throttle     redis.ThrottleStoreInterface
	resolver     *geo.Resolver
	eventBus     bus.Bus
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(
	driverRepo repository.DriverRepository,
	bookingRepo repository.BookingRepository,
	locationRepo repository.LocationUpdateRepository,
	sessions redis.TrackingSessionStoreInterface,
	throttle redis.ThrottleStoreInterface,
	resolver *geo.Resolver,
	eventBus bus.Bus,
) *TrackingService {
	return &TrackingService{
		driverRepo:   driverRepo,
		bookingRepo:  bookingRepo,
		locationRepo: locationRepo,
		sessions:     sessions,
		throttle:     throttle,
		resolver:     resolver,
		eventBus:     eventBus,
	}
}

// RecordGPS appends a device GPS fix to the booking's location stream
// and syncs the driver's live position. The throttled return is true
// when the fix fell inside the rate window and was dropped without
// error; the device keeps sending and the next fix outside the window
// lands.
func (s *TrackingService) RecordGPS(ctx context.Context, driverID, bookingID string, lat, lng float64) (*domain.LocationUpdate, bool, error) {
	if bookingID == "" {
		return nil, false, ErrInvalidBookingID
	}
	if driverID == "" {
		return nil, false, ErrInvalidDriverID
	}
	if !geo.ValidCoordinates(lat, lng) {
		return nil, false, ErrInvalidPosition
	}

	// Fencing: only the booking the session was started for may
	// receive GPS fixes. A superseded session stops writing here even
	// if the old device loop is still running.
	activeBooking, ok, err := s.sessions.Active(ctx, driverID)
	if err != nil {
		return nil, false, err
	}
	if !ok || activeBooking != bookingID {
		return nil, false, ErrNoActiveSession
	}

	allowed, err := s.throttle.Allow(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if !allowed {
		return nil, true, nil
	}

	update := &domain.LocationUpdate{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		DriverID:  driverID,
		Lat:       lat,
		Lng:       lng,
		Source:    domain.SourceGPS,
	}

	if err := s.locationRepo.Create(ctx, update); err != nil {
		return nil, false, err
	}
	publishLocationEvent(ctx, s.eventBus, update)

	// Live marker sync is secondary to the append-only stream. When it
	// fails the stream is still intact, so log and move on.
	if err := s.driverRepo.UpdatePosition(ctx, driverID, lat, lng); err != nil {
		log.Printf("driver %s: position sync failed: %v", driverID, err)
	} else if driver, getErr := s.driverRepo.GetByID(ctx, driverID); getErr == nil {
		publishDriverEvent(ctx, s.eventBus, driver)
	}

	return update, false, nil
}

// RecordManual resolves a shared map link and appends the position to
// the booking's location stream. Manual updates are unthrottled, need
// no tracking session, and deliberately do not move the driver's live
// marker; they describe a point of interest, not the truck.
func (s *TrackingService) RecordManual(ctx context.Context, driverID, bookingID, rawLink string) (*domain.LocationUpdate, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	rawLink = strings.TrimSpace(rawLink)
	if rawLink == "" {
		return nil, ErrMissingRequiredField
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.DriverID != driverID {
		return nil, ErrNotBookingDriver
	}

	point, err := s.resolver.Resolve(ctx, rawLink)
	if err != nil {
		return nil, err
	}

	source := domain.SourceGoogleMaps
	if geo.IsWhatsAppLink(rawLink) {
		source = domain.SourceWhatsApp
	}

	update := &domain.LocationUpdate{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		DriverID:  driverID,
		Lat:       point.Lat,
		Lng:       point.Lng,
		Source:    source,
	}

	if err := s.locationRepo.Create(ctx, update); err != nil {
		return nil, err
	}
	publishLocationEvent(ctx, s.eventBus, update)

	return update, nil
}

// Stop ends the driver's tracking session and clears their live
// position. Stopping with no session running is a no-op.
func (s *TrackingService) Stop(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	_, ok, err := s.sessions.Active(ctx, driverID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := s.sessions.Stop(ctx, driverID); err != nil {
		return err
	}

	if err := s.driverRepo.ClearPosition(ctx, driverID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if driver, err := s.driverRepo.GetByID(ctx, driverID); err == nil {
		publishDriverEvent(ctx, s.eventBus, driver)
	}

	return nil
}
