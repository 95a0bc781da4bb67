package tests

import (
	"context"
	"errors"
	"strings"
	"testing"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/pricing"
	"towdispatch/internal/service"
)

func newBookingService(bookingRepo *MockBookingRepository, driverRepo *MockDriverRepository, locationRepo *MockLocationUpdateRepository, eventBus *MockBus, mailer *MockMailer) *service.BookingService {
	return service.NewBookingService(
		bookingRepo, driverRepo, locationRepo,
		pricing.NewBookingEstimator(), eventBus, mailer,
		service.BookingServiceConfig{
			DepotLat:          45.5017,
			DepotLng:          -73.5673,
			PublicBaseURL:     "https://example.test",
			DefaultDriverName: "Marc",
		},
	)
}

func validSubmit() service.SubmitBookingRequest {
	return service.SubmitBookingRequest{
		CustomerName:   "Alice",
		CustomerPhone:  "+15145550100",
		CustomerEmail:  "alice@example.test",
		ServiceType:    "flatbed",
		Timing:         "now",
		PickupLocation: "1 Rue Sainte-Catherine",
		PickupLat:      45.51,
		PickupLng:      -73.56,
	}
}

func TestSubmit_CreatesPendingBookingWithServerSideDistance(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	eventBus := NewMockBus()
	mailer := NewMockMailer()
	svc := newBookingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), eventBus, mailer)

	result, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := result.Booking
	if b.Status != domain.BookingStatusPending {
		t.Errorf("expected pending, got %s", b.Status)
	}
	if b.TrackingToken == "" {
		t.Error("expected a tracking token")
	}
	// The pickup is within a few km of the depot; rounding puts the
	// distance at a small whole number.
	if b.DistanceKm < 0 || b.DistanceKm > 5 {
		t.Errorf("unexpected distance: %f", b.DistanceKm)
	}
	if b.DistanceKm != float64(int(b.DistanceKm)) {
		t.Errorf("expected whole-km distance, got %f", b.DistanceKm)
	}
	if b.PriceLow <= 0 || b.PriceHigh < b.PriceLow {
		t.Errorf("bad price range: %f..%f", b.PriceLow, b.PriceHigh)
	}
	if !strings.HasSuffix(result.TrackingURL, "/track/"+b.TrackingToken) {
		t.Errorf("unexpected tracking url: %s", result.TrackingURL)
	}
	if mailer.SentCount() != 1 {
		t.Errorf("expected one tracking email, got %d", mailer.SentCount())
	}
}

func TestSubmit_PreassignsDefaultDriverAndPublishes(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Marc", IsActive: true})
	eventBus := NewMockBus()
	svc := newBookingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), eventBus, NewMockMailer())

	result, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Booking.DriverID != "driver-1" {
		t.Errorf("expected default driver preassigned, got %q", result.Booking.DriverID)
	}
	if result.Booking.Status != domain.BookingStatusPending {
		t.Error("preassignment must not skip the pending state")
	}

	events := eventBus.PublishedOn(bus.TopicBookingsByDriver("driver-1"))
	if len(events) != 1 {
		t.Fatalf("expected one event on the driver topic, got %d", len(events))
	}
	if events[0].Op != bus.OpInsert {
		t.Errorf("expected insert, got %s", events[0].Op)
	}
}

func TestSubmit_NoDefaultDriverStillSucceeds(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	svc := newBookingService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockBus(), NewMockMailer())

	result, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Booking.DriverID != "" {
		t.Errorf("expected no driver, got %q", result.Booking.DriverID)
	}
}

func TestSubmit_ClientPriceRangeIsKept(t *testing.T) {
	t.Parallel()

	svc := newBookingService(NewMockBookingRepository(), NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockBus(), NewMockMailer())

	req := validSubmit()
	req.PriceLow, req.PriceHigh = 120, 150
	result, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Booking.PriceLow != 120 || result.Booking.PriceHigh != 150 {
		t.Errorf("expected client range kept, got %f..%f", result.Booking.PriceLow, result.Booking.PriceHigh)
	}
}

func TestSubmit_ValidationFailures(t *testing.T) {
	t.Parallel()

	svc := newBookingService(NewMockBookingRepository(), NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockBus(), NewMockMailer())

	cases := []struct {
		name    string
		mutate  func(*service.SubmitBookingRequest)
		wantErr error
	}{
		{"missing name", func(r *service.SubmitBookingRequest) { r.CustomerName = "" }, service.ErrMissingRequiredField},
		{"missing phone", func(r *service.SubmitBookingRequest) { r.CustomerPhone = "" }, service.ErrMissingRequiredField},
		{"missing service type", func(r *service.SubmitBookingRequest) { r.ServiceType = "" }, service.ErrMissingRequiredField},
		{"missing timing", func(r *service.SubmitBookingRequest) { r.Timing = "" }, service.ErrMissingRequiredField},
		{"missing pickup text", func(r *service.SubmitBookingRequest) { r.PickupLocation = "" }, service.ErrMissingRequiredField},
		{"out of range lat", func(r *service.SubmitBookingRequest) { r.PickupLat = 95 }, service.ErrInvalidPickupLocation},
		{"null island", func(r *service.SubmitBookingRequest) { r.PickupLat, r.PickupLng = 0, 0 }, service.ErrInvalidPickupLocation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validSubmit()
			tc.mutate(&req)
			_, err := svc.Submit(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSubmit_MailFailureDoesNotFailBooking(t *testing.T) {
	t.Parallel()

	mailer := NewMockMailer()
	mailer.SendError = errors.New("smtp down")
	svc := newBookingService(NewMockBookingRepository(), NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockBus(), mailer)

	if _, err := svc.Submit(context.Background(), validSubmit()); err != nil {
		t.Fatalf("mail failure must not fail the submission: %v", err)
	}
}

func TestGetByTrackingToken_ReturnsDriverAndHistory(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	locationRepo := NewMockLocationUpdateRepository()
	svc := newBookingService(bookingRepo, driverRepo, locationRepo, NewMockBus(), NewMockMailer())

	lat, lng := 45.52, -73.55
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Marc", CurrentLat: &lat, CurrentLng: &lng})
	bookingRepo.AddBooking(&domain.Booking{
		ID: "booking-1", TrackingToken: "tok123",
		Status: domain.BookingStatusAssigned, DriverID: "driver-1",
	})
	_ = locationRepo.Create(context.Background(), &domain.LocationUpdate{
		ID: "loc-1", BookingID: "booking-1", DriverID: "driver-1", Lat: lat, Lng: lng, Source: domain.SourceGPS,
	})
	_ = locationRepo.Create(context.Background(), &domain.LocationUpdate{
		ID: "loc-2", BookingID: "booking-1", DriverID: "driver-1", Lat: lat + 0.01, Lng: lng, Source: domain.SourceGPS,
	})

	view, err := svc.GetByTrackingToken(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Driver == nil || !view.Driver.HasPosition() {
		t.Fatal("expected the driver with a live position")
	}
	if view.Current == nil || view.Current.ID != "loc-2" {
		t.Error("expected the latest update as the current position")
	}
	if len(view.Locations) != 2 {
		t.Errorf("expected two locations, got %d", len(view.Locations))
	}
}

func TestGetByTrackingToken_NoUpdatesYet(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	svc := newBookingService(bookingRepo, NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockBus(), NewMockMailer())

	bookingRepo.AddBooking(&domain.Booking{
		ID: "booking-1", TrackingToken: "tok123", Status: domain.BookingStatusPending,
	})

	view, err := svc.GetByTrackingToken(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Current != nil {
		t.Error("expected no current position before the first update")
	}
}

func TestGetByTrackingToken_UnknownToken(t *testing.T) {
	t.Parallel()

	svc := newBookingService(NewMockBookingRepository(), NewMockDriverRepository(), NewMockLocationUpdateRepository(), NewMockBus(), NewMockMailer())

	if _, err := svc.GetByTrackingToken(context.Background(), "nope"); err == nil {
		t.Error("expected an error for an unknown token")
	}
}
