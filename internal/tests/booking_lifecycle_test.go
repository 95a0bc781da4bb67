package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/geo"
	"towdispatch/internal/repository"
	"towdispatch/internal/service"
)

func newDispatchService(bookingRepo *MockBookingRepository, driverRepo *MockDriverRepository, locationRepo *MockLocationUpdateRepository, sessions *MockSessionStore, eventBus *MockBus) *service.DispatchService {
	completion := NewMockCompletionStore(bookingRepo, driverRepo)
	return service.NewDispatchService(completion, bookingRepo, driverRepo, locationRepo, sessions, eventBus)
}

func pendingBooking(id, driverID string) *domain.Booking {
	return &domain.Booking{
		ID:            id,
		TrackingToken: "tok-" + id,
		DriverID:      driverID,
		Status:        domain.BookingStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestAccept_TransitionsPendingToAssigned(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	sessions := NewMockSessionStore()
	eventBus := NewMockBus()
	svc := newDispatchService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, eventBus)

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Marc"})
	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))

	booking, err := svc.Accept(context.Background(), service.AcceptRequest{BookingID: "booking-1", DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != domain.BookingStatusAssigned {
		t.Errorf("expected assigned, got %s", booking.Status)
	}
	if booking.AssignedAt.IsZero() {
		t.Error("expected assignedAt set together with the status")
	}

	stored := bookingRepo.GetBooking("booking-1")
	if stored.Status != domain.BookingStatusAssigned || stored.AssignedAt.IsZero() {
		t.Error("expected status and assignedAt persisted atomically")
	}

	// Acceptance starts the tracking session for this booking.
	active, ok, _ := sessions.Active(context.Background(), "driver-1")
	if !ok || active != "booking-1" {
		t.Errorf("expected an active session for booking-1, got %q (active=%v)", active, ok)
	}

	if len(eventBus.PublishedOn(bus.TopicBookingByID("booking-1"))) == 0 {
		t.Error("expected a booking update event")
	}
}

func TestAccept_InitialFixAppendsLocationAndSyncsPosition(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	locationRepo := NewMockLocationUpdateRepository()
	svc := newDispatchService(bookingRepo, driverRepo, locationRepo, NewMockSessionStore(), NewMockBus())

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1"})
	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))

	_, err := svc.Accept(context.Background(), service.AcceptRequest{
		BookingID:  "booking-1",
		DriverID:   "driver-1",
		InitialFix: &geo.Point{Lat: 45.50, Lng: -73.57},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if locationRepo.CountForBooking("booking-1") != 1 {
		t.Error("expected the initial fix appended")
	}
	if !driverRepo.GetDriver("driver-1").HasPosition() {
		t.Error("expected the driver's live position set")
	}
}

func TestAccept_InitialFixFailureDoesNotFailAccept(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	locationRepo := NewMockLocationUpdateRepository()
	locationRepo.CreateError = errors.New("db down")
	svc := newDispatchService(bookingRepo, driverRepo, locationRepo, NewMockSessionStore(), NewMockBus())

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1"})
	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))

	booking, err := svc.Accept(context.Background(), service.AcceptRequest{
		BookingID:  "booking-1",
		DriverID:   "driver-1",
		InitialFix: &geo.Point{Lat: 45.50, Lng: -73.57},
	})
	if err != nil {
		t.Fatalf("the accept must stand even when the fix write fails: %v", err)
	}
	if booking.Status != domain.BookingStatusAssigned {
		t.Errorf("expected assigned, got %s", booking.Status)
	}
}

func TestAccept_OtherDriversBookingIsForbidden(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockBus())

	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))

	_, err := svc.Accept(context.Background(), service.AcceptRequest{BookingID: "booking-1", DriverID: "driver-2"})
	if !errors.Is(err, service.ErrNotBookingDriver) {
		t.Errorf("got %v, want ErrNotBookingDriver", err)
	}
}

func TestAccept_NonPendingStatesAreRejected(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.BookingStatus{
		domain.BookingStatusAssigned,
		domain.BookingStatusEnRoute,
		domain.BookingStatusRefused,
		domain.BookingStatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			bookingRepo := NewMockBookingRepository()
			svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockBus())

			b := pendingBooking("booking-1", "driver-1")
			b.Status = status
			bookingRepo.AddBooking(b)

			_, err := svc.Accept(context.Background(), service.AcceptRequest{BookingID: "booking-1", DriverID: "driver-1"})
			if !errors.Is(err, service.ErrBookingNotPending) {
				t.Errorf("status %s: got %v, want ErrBookingNotPending", status, err)
			}
		})
	}
}

func TestAccept_GuardMissSurfacesAsConflict(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockBus())

	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))
	// Another request refused the booking between our read and write.
	bookingRepo.MarkAssignedError = repository.ErrStaleState

	_, err := svc.Accept(context.Background(), service.AcceptRequest{BookingID: "booking-1", DriverID: "driver-1"})
	if !errors.Is(err, service.ErrBookingNotPending) {
		t.Errorf("got %v, want ErrBookingNotPending", err)
	}
}

func TestRefuse_TransitionsPendingToRefused(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	sessions := NewMockSessionStore()
	svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), sessions, NewMockBus())

	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))

	booking, err := svc.Refuse(context.Background(), "booking-1", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != domain.BookingStatusRefused {
		t.Errorf("expected refused, got %s", booking.Status)
	}

	// Refusal never starts tracking.
	if _, ok, _ := sessions.Active(context.Background(), "driver-1"); ok {
		t.Error("refusal must not start a tracking session")
	}
}

func TestRefuse_TerminalStatesStayTerminal(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockBus())

	b := pendingBooking("booking-1", "driver-1")
	b.Status = domain.BookingStatusCompleted
	bookingRepo.AddBooking(b)

	if _, err := svc.Refuse(context.Background(), "booking-1", "driver-1"); !errors.Is(err, service.ErrBookingNotPending) {
		t.Errorf("got %v, want ErrBookingNotPending", err)
	}
}

func inProgressBooking(id, driverID string) *domain.Booking {
	b := pendingBooking(id, driverID)
	b.Status = domain.BookingStatusEnRoute
	return b
}

func TestComplete_TrackedBookingClearsLivePosition(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	sessions := NewMockSessionStore()
	eventBus := NewMockBus()
	svc := newDispatchService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, eventBus)

	lat, lng := 45.52, -73.55
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", CurrentLat: &lat, CurrentLng: &lng})
	bookingRepo.AddBooking(inProgressBooking("booking-1", "driver-1"))
	_ = sessions.Start(context.Background(), "driver-1", "booking-1")

	booking, err := svc.Complete(context.Background(), "booking-1", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != domain.BookingStatusCompleted || booking.CompletedAt.IsZero() {
		t.Error("expected completed with completedAt set together with the status")
	}

	// The live marker goes away with the completion, and the session is
	// released.
	if driverRepo.GetDriver("driver-1").HasPosition() {
		t.Error("expected the driver's live position cleared")
	}
	if _, ok, _ := sessions.Active(context.Background(), "driver-1"); ok {
		t.Error("expected the tracking session released")
	}

	if len(eventBus.PublishedOn(bus.TopicDriverByID("driver-1"))) == 0 {
		t.Error("expected a driver update event signalling the marker removal")
	}
	if len(eventBus.PublishedOn(bus.TopicBookingByID("booking-1"))) == 0 {
		t.Error("expected a booking update event")
	}
}

func TestComplete_UntrackedBookingLeavesPositionAlone(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	sessions := NewMockSessionStore()
	svc := newDispatchService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, NewMockBus())

	lat, lng := 45.52, -73.55
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", CurrentLat: &lat, CurrentLng: &lng})
	bookingRepo.AddBooking(inProgressBooking("booking-1", "driver-1"))

	booking, err := svc.Complete(context.Background(), "booking-1", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != domain.BookingStatusCompleted {
		t.Errorf("expected completed, got %s", booking.Status)
	}
	if !driverRepo.GetDriver("driver-1").HasPosition() {
		t.Error("completing an untracked booking must leave the position untouched")
	}
	if driverRepo.ClearPositionCallCount != 0 {
		t.Error("expected no position clear attempt")
	}
}

func TestComplete_SessionForAnotherBookingIsNotReleased(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	sessions := NewMockSessionStore()
	svc := newDispatchService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, NewMockBus())

	lat, lng := 45.52, -73.55
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", CurrentLat: &lat, CurrentLng: &lng})
	bookingRepo.AddBooking(inProgressBooking("booking-1", "driver-1"))
	// The driver moved on to another job; its session owns the position.
	_ = sessions.Start(context.Background(), "driver-1", "booking-2")

	if _, err := svc.Complete(context.Background(), "booking-1", "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !driverRepo.GetDriver("driver-1").HasPosition() {
		t.Error("expected the other session's position left untouched")
	}
	active, ok, _ := sessions.Active(context.Background(), "driver-1")
	if !ok || active != "booking-2" {
		t.Errorf("expected the booking-2 session to survive, got %q (active=%v)", active, ok)
	}
}

func TestComplete_PositionClearFailureRollsBackTheTransition(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	driverRepo.ClearPositionError = errors.New("db down")
	sessions := NewMockSessionStore()
	svc := newDispatchService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, NewMockBus())

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1"})
	bookingRepo.AddBooking(inProgressBooking("booking-1", "driver-1"))
	_ = sessions.Start(context.Background(), "driver-1", "booking-1")

	if _, err := svc.Complete(context.Background(), "booking-1", "driver-1"); err == nil {
		t.Fatal("expected the completion to fail")
	}

	// No partial apply: the status transition rolled back with the clear.
	stored := bookingRepo.GetBooking("booking-1")
	if stored.Status != domain.BookingStatusEnRoute || !stored.CompletedAt.IsZero() {
		t.Errorf("expected the booking unchanged, got status %s", stored.Status)
	}
	// The session survives; the driver can retry the completion.
	if _, ok, _ := sessions.Active(context.Background(), "driver-1"); !ok {
		t.Error("expected the tracking session kept after the failed completion")
	}
}

func TestComplete_NonInProgressStatesAreRejected(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.BookingStatus{
		domain.BookingStatusPending,
		domain.BookingStatusRefused,
		domain.BookingStatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			bookingRepo := NewMockBookingRepository()
			svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockBus())

			b := pendingBooking("booking-1", "driver-1")
			b.Status = status
			bookingRepo.AddBooking(b)

			_, err := svc.Complete(context.Background(), "booking-1", "driver-1")
			if !errors.Is(err, service.ErrBookingNotInProgress) {
				t.Errorf("status %s: got %v, want ErrBookingNotInProgress", status, err)
			}
		})
	}
}

func TestComplete_GuardMissSurfacesAsConflict(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	svc := newDispatchService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockBus())

	bookingRepo.AddBooking(inProgressBooking("booking-1", "driver-1"))
	// Another request completed the booking between our read and write.
	bookingRepo.MarkCompletedError = repository.ErrStaleState

	if _, err := svc.Complete(context.Background(), "booking-1", "driver-1"); !errors.Is(err, service.ErrBookingNotInProgress) {
		t.Errorf("got %v, want ErrBookingNotInProgress", err)
	}
}

func TestMarkCompleted_OnlyFromInProgress(t *testing.T) {
	t.Parallel()

	// The completion write itself is guarded at the store layer; any
	// in-progress state may complete, pending and terminal states may not.
	cases := []struct {
		status domain.BookingStatus
		ok     bool
	}{
		{domain.BookingStatusPending, false},
		{domain.BookingStatusAssigned, true},
		{domain.BookingStatusDispatched, true},
		{domain.BookingStatusEnRoute, true},
		{domain.BookingStatusArrived, true},
		{domain.BookingStatusRefused, false},
		{domain.BookingStatusCompleted, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			bookingRepo := NewMockBookingRepository()
			b := pendingBooking("booking-1", "driver-1")
			b.Status = tc.status
			bookingRepo.AddBooking(b)

			err := bookingRepo.MarkCompleted(context.Background(), "booking-1", time.Now())
			if tc.ok && err != nil {
				t.Errorf("status %s: unexpected error %v", tc.status, err)
			}
			if !tc.ok && !errors.Is(err, repository.ErrStaleState) {
				t.Errorf("status %s: got %v, want ErrStaleState", tc.status, err)
			}
			if tc.ok {
				stored := bookingRepo.GetBooking("booking-1")
				if stored.Status != domain.BookingStatusCompleted || stored.CompletedAt.IsZero() {
					t.Error("expected status and completedAt set together")
				}
			}
		})
	}
}

func TestBookingStatus_Predicates(t *testing.T) {
	t.Parallel()

	if domain.BookingStatusPending.InProgress() {
		t.Error("pending is not in progress")
	}
	if !domain.BookingStatusArrived.InProgress() {
		t.Error("arrived is in progress")
	}
	if !domain.BookingStatusRefused.Terminal() || !domain.BookingStatusCompleted.Terminal() {
		t.Error("refused and completed are terminal")
	}
	if domain.BookingStatusAssigned.Terminal() {
		t.Error("assigned is not terminal")
	}
}
