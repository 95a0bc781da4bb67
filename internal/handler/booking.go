package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"towdispatch/internal/geo"
	"towdispatch/internal/observability"
	"towdispatch/internal/pricing"
	"towdispatch/internal/service"
)

// BookingHandler handles the public, unauthenticated endpoints: booking
// submission, map-link resolution and the pre-sales price calculator.
type BookingHandler struct {
	bookingService *service.BookingService
	resolver       *geo.Resolver
	calculator     pricing.Estimator
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, resolver *geo.Resolver, calculator pricing.Estimator) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		resolver:       resolver,
		calculator:     calculator,
	}
}

// SubmitBookingRequest is the HTTP request body for submitting a booking.
type SubmitBookingRequest struct {
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email,omitempty"`
	ServiceType    string  `json:"service_type"`
	Timing         string  `json:"timing"`
	Notes          string  `json:"notes,omitempty"`
	PickupLocation string  `json:"pickup_location"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	PriceLow       float64 `json:"price_low,omitempty"`
	PriceHigh      float64 `json:"price_high,omitempty"`
}

// SubmitBookingResponse is the HTTP response for submitting a booking.
type SubmitBookingResponse struct {
	Success       bool   `json:"success"`
	BookingID     string `json:"booking_id"`
	TrackingToken string `json:"tracking_token"`
	TrackingURL   string `json:"tracking_url"`
}

// SubmitBooking handles POST /v1/bookings
func (h *BookingHandler) SubmitBooking(c *gin.Context) {
	var req SubmitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.bookingService.Submit(c.Request.Context(), service.SubmitBookingRequest{
		CustomerName:   req.Name,
		CustomerPhone:  req.Phone,
		CustomerEmail:  req.Email,
		ServiceType:    req.ServiceType,
		Timing:         req.Timing,
		Notes:          req.Notes,
		PickupLocation: req.PickupLocation,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		PriceLow:       req.PriceLow,
		PriceHigh:      req.PriceHigh,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	observability.BookingsSubmitted.Inc()

	respondJSON(c, http.StatusOK, SubmitBookingResponse{
		Success:       true,
		BookingID:     result.Booking.ID,
		TrackingToken: result.Booking.TrackingToken,
		TrackingURL:   result.TrackingURL,
	})
}

// ResolveLocationRequest is the HTTP request body for resolving a map link.
type ResolveLocationRequest struct {
	URL string `json:"url"`
}

// ResolveLocationResponse is the HTTP response for a resolved location.
type ResolveLocationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ResolveLocation handles POST /v1/resolve-location
func (h *BookingHandler) ResolveLocation(c *gin.Context) {
	var req ResolveLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	point, err := h.resolver.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		observability.LinkResolutions.WithLabelValues("failure").Inc()
		respondError(c, err)
		return
	}

	observability.LinkResolutions.WithLabelValues("success").Inc()
	respondJSON(c, http.StatusOK, ResolveLocationResponse{Lat: point.Lat, Lng: point.Lng})
}

// EstimateRequest is the HTTP request body for the price calculator.
type EstimateRequest struct {
	ServiceType string  `json:"service_type"`
	VehicleType string  `json:"vehicle_type"`
	DistanceKm  float64 `json:"distance_km"`
	TimeOfDay   string  `json:"time_of_day,omitempty"` // day, evening, night
	Weekend     bool    `json:"weekend"`
}

// Estimate handles POST /v1/estimates
func (h *BookingHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.DistanceKm < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "distance must be non-negative"})
		return
	}

	estimate := h.calculator.Estimate(pricing.Quote{
		DistanceKm:  req.DistanceKm,
		ServiceType: req.ServiceType,
		VehicleType: req.VehicleType,
		TimeOfDay:   req.TimeOfDay,
		Weekend:     req.Weekend,
		RequestedAt: time.Now(),
	})

	respondJSON(c, http.StatusOK, estimate)
}
