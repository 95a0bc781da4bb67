package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/geo"
	"towdispatch/internal/redis"
	"towdispatch/internal/repository"
)

// DispatchService drives the booking lifecycle: accept, refuse and
// complete. Only the assigned driver may transition a booking; everyone
// else, the public tracker included, only observes.
type DispatchService struct {
	completion   repository.CompletionStore
	bookingRepo  repository.BookingRepository
	driverRepo   repository.DriverRepository
	locationRepo repository.LocationUpdateRepository
	sessions     redis.TrackingSessionStoreInterface
	eventBus     bus.Bus
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	completion repository.CompletionStore,
	bookingRepo repository.BookingRepository,
	driverRepo repository.DriverRepository,
	locationRepo repository.LocationUpdateRepository,
	sessions redis.TrackingSessionStoreInterface,
	eventBus bus.Bus,
) *DispatchService {
	return &DispatchService{
		completion:   completion,
		bookingRepo:  bookingRepo,
		driverRepo:   driverRepo,
		locationRepo: locationRepo,
		sessions:     sessions,
		eventBus:     eventBus,
	}
}

// AcceptRequest contains the parameters for accepting a booking.
// InitialFix is the device GPS position captured at the moment of
// acceptance, when the device could supply one.
type AcceptRequest struct {
	BookingID  string
	DriverID   string
	InitialFix *geo.Point
}

// Accept transitions a pending booking to assigned. The status and
// assignedAt land in one guarded statement, so no observer can see one
// without the other. Tracking starts as part of acceptance: the driver's
// session is claimed for this booking and, when an initial fix was
// captured, it is appended to the location stream with a best-effort
// driver position sync.
func (s *DispatchService) Accept(ctx context.Context, req AcceptRequest) (*domain.Booking, error) {
	booking, err := s.authorize(ctx, req.BookingID, req.DriverID)
	if err != nil {
		return nil, err
	}

	if !booking.CanAccept() {
		return nil, ErrBookingNotPending
	}

	assignedAt := time.Now()
	if err := s.bookingRepo.MarkAssigned(ctx, booking.ID, assignedAt); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrBookingNotPending
		}
		return nil, err
	}

	booking.Status = domain.BookingStatusAssigned
	booking.AssignedAt = assignedAt
	publishBookingEvent(ctx, s.eventBus, bus.OpUpdate, booking)

	// GPS tracking auto-starts on acceptance, superseding any session
	// the driver still had running.
	if err := s.sessions.Start(ctx, req.DriverID, booking.ID); err != nil {
		log.Printf("booking %s: tracking session start failed: %v", booking.ID, err)
	}

	if req.InitialFix != nil {
		s.recordInitialFix(ctx, booking, req.DriverID, *req.InitialFix)
	}

	return booking, nil
}

// Refuse transitions a pending booking to refused. No further
// transitions are defined from refused.
func (s *DispatchService) Refuse(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, err := s.authorize(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	if !booking.CanRefuse() {
		return nil, ErrBookingNotPending
	}

	if err := s.bookingRepo.MarkRefused(ctx, booking.ID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrBookingNotPending
		}
		return nil, err
	}

	booking.Status = domain.BookingStatusRefused
	publishBookingEvent(ctx, s.eventBus, bus.OpUpdate, booking)

	return booking, nil
}

// Complete transitions an in-progress booking to completed. When a
// tracking session for this booking is active, the driver's live
// position is cleared in the same transaction as the status change, so
// the tracker never observes a completed booking with a stale live
// marker. Completing an untracked booking leaves the position untouched.
func (s *DispatchService) Complete(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, err := s.authorize(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	if !booking.CanComplete() {
		return nil, ErrBookingNotInProgress
	}

	activeBooking, tracking, err := s.sessions.Active(ctx, driverID)
	if err != nil {
		return nil, err
	}
	trackingThisBooking := tracking && activeBooking == booking.ID

	completedAt := time.Now()

	if err := s.completion.Complete(ctx, booking.ID, driverID, completedAt, trackingThisBooking); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrBookingNotInProgress
		}
		return nil, err
	}

	if trackingThisBooking {
		if stopErr := s.sessions.Stop(ctx, driverID); stopErr != nil {
			log.Printf("booking %s: tracking session stop failed: %v", booking.ID, stopErr)
		}
		if driver, getErr := s.driverRepo.GetByID(ctx, driverID); getErr == nil {
			publishDriverEvent(ctx, s.eventBus, driver)
		}
	}

	booking.Status = domain.BookingStatusCompleted
	booking.CompletedAt = completedAt
	publishBookingEvent(ctx, s.eventBus, bus.OpUpdate, booking)

	return booking, nil
}

// authorize loads the booking and checks the acting driver owns it.
func (s *DispatchService) authorize(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.DriverID != driverID {
		return nil, ErrNotBookingDriver
	}

	return booking, nil
}

// recordInitialFix appends the acceptance-time GPS fix and syncs the
// driver's live position. Both are best-effort relative to the accept:
// the status transition already committed, so failures here are logged
// and the driver keeps operating via manual link sharing.
func (s *DispatchService) recordInitialFix(ctx context.Context, booking *domain.Booking, driverID string, fix geo.Point) {
	if !geo.ValidCoordinates(fix.Lat, fix.Lng) {
		log.Printf("booking %s: dropping out-of-range initial fix", booking.ID)
		return
	}

	update := &domain.LocationUpdate{
		ID:        uuid.New().String(),
		BookingID: booking.ID,
		DriverID:  driverID,
		Lat:       fix.Lat,
		Lng:       fix.Lng,
		Source:    domain.SourceGPS,
	}

	if err := s.locationRepo.Create(ctx, update); err != nil {
		log.Printf("booking %s: initial location update failed: %v", booking.ID, err)
		return
	}
	publishLocationEvent(ctx, s.eventBus, update)

	if err := s.driverRepo.UpdatePosition(ctx, driverID, fix.Lat, fix.Lng); err != nil {
		log.Printf("driver %s: position sync failed: %v", driverID, err)
		return
	}
	if driver, err := s.driverRepo.GetByID(ctx, driverID); err == nil {
		publishDriverEvent(ctx, s.eventBus, driver)
	}
}
