package tests

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/geo"
	"towdispatch/internal/service"
)

func newTrackingService(bookingRepo *MockBookingRepository, driverRepo *MockDriverRepository, locationRepo *MockLocationUpdateRepository, sessions *MockSessionStore, throttle *MockThrottleStore, resolver *geo.Resolver, eventBus *MockBus) *service.TrackingService {
	if resolver == nil {
		resolver = geo.NewResolver(nil)
	}
	return service.NewTrackingService(driverRepo, bookingRepo, locationRepo, sessions, throttle, resolver, eventBus)
}

func trackedFixture(t *testing.T) (*MockBookingRepository, *MockDriverRepository, *MockSessionStore) {
	t.Helper()
	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	sessions := NewMockSessionStore()

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Marc"})
	b := pendingBooking("booking-1", "driver-1")
	b.Status = domain.BookingStatusAssigned
	bookingRepo.AddBooking(b)
	if err := sessions.Start(context.Background(), "driver-1", "booking-1"); err != nil {
		t.Fatalf("session start: %v", err)
	}
	return bookingRepo, driverRepo, sessions
}

func TestRecordGPS_AppendsAndSyncsDriverPosition(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, sessions := trackedFixture(t)
	locationRepo := NewMockLocationUpdateRepository()
	eventBus := NewMockBus()
	svc := newTrackingService(bookingRepo, driverRepo, locationRepo, sessions, NewMockThrottleStore(), nil, eventBus)

	update, throttled, err := svc.RecordGPS(context.Background(), "driver-1", "booking-1", 45.52, -73.55)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if throttled {
		t.Fatal("first fix in a window must not be throttled")
	}
	if update.Source != domain.SourceGPS {
		t.Errorf("expected gps source, got %s", update.Source)
	}
	if locationRepo.CountForBooking("booking-1") != 1 {
		t.Error("expected the fix appended to the stream")
	}

	driver := driverRepo.GetDriver("driver-1")
	if !driver.HasPosition() || *driver.CurrentLat != 45.52 || *driver.CurrentLng != -73.55 {
		t.Error("expected the live position synced")
	}

	if len(eventBus.PublishedOn(bus.TopicLocationsByBooking("booking-1"))) != 1 {
		t.Error("expected a location event")
	}
	if len(eventBus.PublishedOn(bus.TopicDriverByID("driver-1"))) != 1 {
		t.Error("expected a driver position event")
	}
}

func TestRecordGPS_SecondFixInWindowIsDropped(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, sessions := trackedFixture(t)
	locationRepo := NewMockLocationUpdateRepository()
	throttle := NewMockThrottleStore()
	svc := newTrackingService(bookingRepo, driverRepo, locationRepo, sessions, throttle, nil, NewMockBus())

	ctx := context.Background()
	if _, throttled, err := svc.RecordGPS(ctx, "driver-1", "booking-1", 45.52, -73.55); err != nil || throttled {
		t.Fatalf("first fix: throttled=%v err=%v", throttled, err)
	}

	update, throttled, err := svc.RecordGPS(ctx, "driver-1", "booking-1", 45.53, -73.54)
	if err != nil {
		t.Fatalf("a throttled fix is not an error: %v", err)
	}
	if !throttled || update != nil {
		t.Fatal("expected the second fix inside the window dropped")
	}
	if locationRepo.CountForBooking("booking-1") != 1 {
		t.Error("the dropped fix must not reach the stream")
	}

	// Once the window passes, fixes land again.
	throttle.AdvanceWindow("booking-1")
	if _, throttled, err := svc.RecordGPS(ctx, "driver-1", "booking-1", 45.54, -73.53); err != nil || throttled {
		t.Fatalf("post-window fix: throttled=%v err=%v", throttled, err)
	}
	if locationRepo.CountForBooking("booking-1") != 2 {
		t.Error("expected the post-window fix appended")
	}
}

func TestRecordGPS_NoSessionIsFenced(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1"})
	bookingRepo.AddBooking(pendingBooking("booking-1", "driver-1"))
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockThrottleStore(), nil, NewMockBus())

	_, _, err := svc.RecordGPS(context.Background(), "driver-1", "booking-1", 45.52, -73.55)
	if !errors.Is(err, service.ErrNoActiveSession) {
		t.Errorf("got %v, want ErrNoActiveSession", err)
	}
}

func TestRecordGPS_SupersededSessionIsFenced(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, sessions := trackedFixture(t)
	locationRepo := NewMockLocationUpdateRepository()
	svc := newTrackingService(bookingRepo, driverRepo, locationRepo, sessions, NewMockThrottleStore(), nil, NewMockBus())

	// A second acceptance moved the session to another booking. The old
	// device loop keeps sending for booking-1 and must be rejected.
	b2 := pendingBooking("booking-2", "driver-1")
	b2.Status = domain.BookingStatusAssigned
	bookingRepo.AddBooking(b2)
	_ = sessions.Start(context.Background(), "driver-1", "booking-2")

	_, _, err := svc.RecordGPS(context.Background(), "driver-1", "booking-1", 45.52, -73.55)
	if !errors.Is(err, service.ErrNoActiveSession) {
		t.Errorf("got %v, want ErrNoActiveSession", err)
	}
	if locationRepo.CountForBooking("booking-1") != 0 {
		t.Error("a fenced fix must not be written")
	}
}

func TestRecordGPS_OutOfRangeCoordinates(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, sessions := trackedFixture(t)
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, NewMockThrottleStore(), nil, NewMockBus())

	_, _, err := svc.RecordGPS(context.Background(), "driver-1", "booking-1", 123.0, -73.55)
	if !errors.Is(err, service.ErrInvalidPosition) {
		t.Errorf("got %v, want ErrInvalidPosition", err)
	}
}

func TestRecordGPS_PositionSyncFailureKeepsTheStreamWrite(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, sessions := trackedFixture(t)
	driverRepo.UpdatePositionError = errors.New("db down")
	locationRepo := NewMockLocationUpdateRepository()
	svc := newTrackingService(bookingRepo, driverRepo, locationRepo, sessions, NewMockThrottleStore(), nil, NewMockBus())

	update, throttled, err := svc.RecordGPS(context.Background(), "driver-1", "booking-1", 45.52, -73.55)
	if err != nil || throttled || update == nil {
		t.Fatalf("the append must stand when the live sync fails: update=%v throttled=%v err=%v", update, throttled, err)
	}
	if locationRepo.CountForBooking("booking-1") != 1 {
		t.Error("expected the stream write kept")
	}
}

func TestRecordManual_ResolvesLinkWithoutTouchingLivePosition(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, _ := trackedFixture(t)
	locationRepo := NewMockLocationUpdateRepository()
	// Manual updates need no session; use a fresh empty session store.
	svc := newTrackingService(bookingRepo, driverRepo, locationRepo, NewMockSessionStore(), NewMockThrottleStore(), nil, NewMockBus())

	update, err := svc.RecordManual(context.Background(), "driver-1", "booking-1", "https://maps.google.com/?q=45.5017,-73.5673")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Source != domain.SourceGoogleMaps {
		t.Errorf("expected google_maps source, got %s", update.Source)
	}
	if update.Lat != 45.5017 || update.Lng != -73.5673 {
		t.Errorf("got (%f, %f)", update.Lat, update.Lng)
	}
	if driverRepo.GetDriver("driver-1").HasPosition() {
		t.Error("manual updates must not move the live marker")
	}
}

func TestRecordManual_WhatsAppSourceDetected(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, _ := trackedFixture(t)
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockThrottleStore(), nil, NewMockBus())

	update, err := svc.RecordManual(context.Background(), "driver-1", "booking-1", "https://api.whatsapp.com/send?text=loc:45.50+-73.57")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Source != domain.SourceWhatsApp {
		t.Errorf("expected whatsapp source, got %s", update.Source)
	}
}

func TestRecordManual_IsNotThrottled(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, _ := trackedFixture(t)
	locationRepo := NewMockLocationUpdateRepository()
	throttle := NewMockThrottleStore()
	svc := newTrackingService(bookingRepo, driverRepo, locationRepo, NewMockSessionStore(), throttle, nil, NewMockBus())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordManual(ctx, "driver-1", "booking-1", "https://maps.google.com/?q=45.50,-73.57"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if locationRepo.CountForBooking("booking-1") != 3 {
		t.Error("manual updates bypass the rate window")
	}
	if throttle.AllowCallCount != 0 {
		t.Error("manual updates must not consult the throttle")
	}
}

func TestRecordManual_OtherDriversBookingIsForbidden(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, _ := trackedFixture(t)
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockThrottleStore(), nil, NewMockBus())

	_, err := svc.RecordManual(context.Background(), "driver-2", "booking-1", "https://maps.google.com/?q=45.50,-73.57")
	if !errors.Is(err, service.ErrNotBookingDriver) {
		t.Errorf("got %v, want ErrNotBookingDriver", err)
	}
}

func TestRecordManual_UnresolvableLinkFails(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, _ := trackedFixture(t)
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockThrottleStore(), nil, NewMockBus())

	_, err := svc.RecordManual(context.Background(), "driver-1", "booking-1", "meet me at the gas station")
	var unparsable *geo.UnparsableLocationError
	if !errors.As(err, &unparsable) {
		t.Errorf("got %v, want UnparsableLocationError", err)
	}
}

func TestRecordManual_ShortenedLinkIsFollowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/short" {
			http.Redirect(w, req, "/maps/search/45.5017,-73.5673", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bookingRepo, driverRepo, _ := trackedFixture(t)
	resolver := geo.NewResolver(srv.Client())
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockThrottleStore(), resolver, NewMockBus())

	// The shortener marker routes the input through the redirect
	// follower; the host in the link is the test server.
	link := srv.URL + "/short?maps.app.goo.gl"
	update, err := svc.RecordManual(context.Background(), "driver-1", "booking-1", link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Lat != 45.5017 || update.Lng != -73.5673 {
		t.Errorf("got (%f, %f)", update.Lat, update.Lng)
	}
}

func TestStop_ClearsSessionAndLivePosition(t *testing.T) {
	t.Parallel()

	bookingRepo, driverRepo, sessions := trackedFixture(t)
	lat, lng := 45.52, -73.55
	driverRepo.GetDriver("driver-1").CurrentLat = &lat
	driverRepo.GetDriver("driver-1").CurrentLng = &lng
	eventBus := NewMockBus()
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), sessions, NewMockThrottleStore(), nil, eventBus)

	if err := svc.Stop(context.Background(), "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, _ := sessions.Active(context.Background(), "driver-1"); ok {
		t.Error("expected the session gone")
	}
	if driverRepo.GetDriver("driver-1").HasPosition() {
		t.Error("expected the live position cleared")
	}
	// Consumers learn about the cleared marker from the driver event.
	if len(eventBus.PublishedOn(bus.TopicDriverByID("driver-1"))) != 1 {
		t.Error("expected a driver event announcing the cleared position")
	}
}

func TestStop_WithoutSessionIsANoOp(t *testing.T) {
	t.Parallel()

	bookingRepo := NewMockBookingRepository()
	driverRepo := NewMockDriverRepository()
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1"})
	svc := newTrackingService(bookingRepo, driverRepo, NewMockLocationUpdateRepository(), NewMockSessionStore(), NewMockThrottleStore(), nil, NewMockBus())

	if err := svc.Stop(context.Background(), "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driverRepo.ClearPositionCallCount != 0 {
		t.Error("no session means nothing to clear")
	}
}
