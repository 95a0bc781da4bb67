package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/geo"
	"towdispatch/internal/pricing"
	"towdispatch/internal/repository"
)

// BookingService handles the public booking funnel: submission, price
// estimation at submission time, and tracking-token lookups.
type BookingService struct {
	bookingRepo  repository.BookingRepository
	driverRepo   repository.DriverRepository
	locationRepo repository.LocationUpdateRepository
	estimator    pricing.Estimator
	eventBus     bus.Bus
	mailer       Mailer

	depotLat          float64
	depotLng          float64
	publicBaseURL     string
	defaultDriverName string
}

// BookingServiceConfig carries the deployment-specific values the
// booking funnel needs.
type BookingServiceConfig struct {
	DepotLat          float64
	DepotLng          float64
	PublicBaseURL     string
	DefaultDriverName string
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	driverRepo repository.DriverRepository,
	locationRepo repository.LocationUpdateRepository,
	estimator pricing.Estimator,
	eventBus bus.Bus,
	mailer Mailer,
	cfg BookingServiceConfig,
) *BookingService {
	return &BookingService{
		bookingRepo:       bookingRepo,
		driverRepo:        driverRepo,
		locationRepo:      locationRepo,
		estimator:         estimator,
		eventBus:          eventBus,
		mailer:            mailer,
		depotLat:          cfg.DepotLat,
		depotLng:          cfg.DepotLng,
		publicBaseURL:     cfg.PublicBaseURL,
		defaultDriverName: cfg.DefaultDriverName,
	}
}

// SubmitBookingRequest contains the parameters for submitting a booking.
type SubmitBookingRequest struct {
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	ServiceType    string
	Timing         string
	Notes          string
	PickupLocation string
	PickupLat      float64
	PickupLng      float64
	PriceLow       float64 // optional, client-computed; advisory only
	PriceHigh      float64
}

// SubmitBookingResponse contains the result of submitting a booking.
type SubmitBookingResponse struct {
	Booking     *domain.Booking
	TrackingURL string
}

// Submit validates and creates a booking in pending status with the
// default driver preassigned. Distance is computed server-side against
// the depot and is immutable thereafter. A tracking-link email is
// attempted when the customer supplied an address; its failure is logged
// and never fails the booking.
func (s *BookingService) Submit(ctx context.Context, req SubmitBookingRequest) (*SubmitBookingResponse, error) {
	if err := s.validateSubmit(req); err != nil {
		return nil, err
	}

	distanceKm := math.Round(geo.Haversine(s.depotLat, s.depotLng, req.PickupLat, req.PickupLng))

	priceLow, priceHigh := req.PriceLow, req.PriceHigh
	if priceLow == 0 && priceHigh == 0 {
		estimate := s.estimator.Estimate(pricing.Quote{
			DistanceKm:  distanceKm,
			ServiceType: req.ServiceType,
			Timing:      req.Timing,
			RequestedAt: time.Now(),
		})
		priceLow, priceHigh = estimate.Low, estimate.High
	}

	booking := &domain.Booking{
		ID:             uuid.New().String(),
		TrackingToken:  NewTrackingToken(),
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		ServiceType:    domain.ServiceType(req.ServiceType),
		Timing:         domain.Timing(req.Timing),
		Notes:          req.Notes,
		PickupLocation: req.PickupLocation,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DistanceKm:     distanceKm,
		PriceLow:       priceLow,
		PriceHigh:      priceHigh,
		Status:         domain.BookingStatusPending,
		CreatedAt:      time.Now(),
	}

	// Single-default-driver model: every new booking is associated with
	// the default driver at creation, but stays pending until the driver
	// explicitly accepts.
	if defaultDriver, err := s.driverRepo.GetByName(ctx, s.defaultDriverName); err == nil {
		booking.DriverID = defaultDriver.ID
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, err
	}

	if booking.DriverID != "" {
		publishBookingEvent(ctx, s.eventBus, bus.OpInsert, booking)
	}

	trackingURL := s.publicBaseURL + "/track/" + booking.TrackingToken

	if booking.CustomerEmail != "" {
		if err := s.mailer.SendTrackingLink(ctx, booking, trackingURL); err != nil {
			log.Printf("booking %s: tracking email failed: %v", booking.ID, err)
		}
	}

	return &SubmitBookingResponse{Booking: booking, TrackingURL: trackingURL}, nil
}

// TrackingView is the public tracker page data for one booking.
type TrackingView struct {
	Booking   *domain.Booking
	Driver    *domain.Driver         // nil until assigned
	Current   *domain.LocationUpdate // nil until the first update
	Locations []*domain.LocationUpdate
}

const trackingHistoryLimit = 50

// GetByTrackingToken loads everything the public tracker shows: booking
// status, the assigned driver (identity, phone, live position), and the
// recent location history newest first.
func (s *BookingService) GetByTrackingToken(ctx context.Context, token string) (*TrackingView, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}

	booking, err := s.bookingRepo.GetByTrackingToken(ctx, token)
	if err != nil {
		return nil, err
	}

	view := &TrackingView{Booking: booking}

	if booking.DriverID != "" {
		driver, err := s.driverRepo.GetByID(ctx, booking.DriverID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		view.Driver = driver
	}

	// The marker position: latest by createdAt, independent of the
	// bounded history below.
	current, err := s.locationRepo.LatestByBooking(ctx, booking.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	view.Current = current

	locations, err := s.locationRepo.ListByBooking(ctx, booking.ID, trackingHistoryLimit)
	if err != nil {
		return nil, err
	}
	view.Locations = locations

	return view, nil
}

// ListForDriver returns the driver's bookings in active statuses, newest
// first. This is the manual-refresh path that backs the dashboard when
// bus events are missed.
func (s *BookingService) ListForDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	statuses := []domain.BookingStatus{
		domain.BookingStatusPending,
		domain.BookingStatusAssigned,
		domain.BookingStatusDispatched,
		domain.BookingStatusEnRoute,
		domain.BookingStatusArrived,
		domain.BookingStatusCompleted,
	}
	return s.bookingRepo.ListByDriver(ctx, driverID, statuses)
}

func (s *BookingService) validateSubmit(req SubmitBookingRequest) error {
	if req.CustomerName == "" || req.CustomerPhone == "" ||
		req.ServiceType == "" || req.Timing == "" || req.PickupLocation == "" {
		return ErrMissingRequiredField
	}
	if !geo.ValidCoordinates(req.PickupLat, req.PickupLng) || (req.PickupLat == 0 && req.PickupLng == 0) {
		return ErrInvalidPickupLocation
	}
	return nil
}
