package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"towdispatch/internal/geo"
	"towdispatch/internal/middleware"
	"towdispatch/internal/observability"
	"towdispatch/internal/service"
)

// DriverHandler handles the authenticated driver dashboard endpoints.
type DriverHandler struct {
	authService     *service.AuthService
	bookingService  *service.BookingService
	dispatchService *service.DispatchService
	trackingService *service.TrackingService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(
	authService *service.AuthService,
	bookingService *service.BookingService,
	dispatchService *service.DispatchService,
	trackingService *service.TrackingService,
) *DriverHandler {
	return &DriverHandler{
		authService:     authService,
		bookingService:  bookingService,
		dispatchService: dispatchService,
		trackingService: trackingService,
	}
}

// LoginRequest is the HTTP request body for driver login.
type LoginRequest struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}

// LoginResponse is the HTTP response for a successful login.
type LoginResponse struct {
	Token  string         `json:"token"`
	Driver DriverResponse `json:"driver"`
}

// Login handles POST /v1/driver/login
func (h *DriverHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, driver, err := h.authService.Login(c.Request.Context(), req.Email, req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, LoginResponse{
		Token:  token,
		Driver: toDriverResponse(driver),
	})
}

// ListBookings handles GET /v1/driver/bookings
func (h *DriverHandler) ListBookings(c *gin.Context) {
	driverID := middleware.DriverID(c)

	bookings, err := h.bookingService.ListForDriver(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}
	respondJSON(c, http.StatusOK, gin.H{"bookings": response})
}

// AcceptBookingRequest is the HTTP request body for accepting a booking.
// The initial position is optional; devices without GPS permission omit
// it and the driver shares links manually instead.
type AcceptBookingRequest struct {
	InitialLat *float64 `json:"initial_lat,omitempty"`
	InitialLng *float64 `json:"initial_lng,omitempty"`
}

// AcceptBooking handles POST /v1/driver/bookings/:id/accept
func (h *DriverHandler) AcceptBooking(c *gin.Context) {
	// The body is optional; an empty request accepts without an initial fix.
	var req AcceptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	accept := service.AcceptRequest{
		BookingID: c.Param("id"),
		DriverID:  middleware.DriverID(c),
	}
	if req.InitialLat != nil && req.InitialLng != nil {
		accept.InitialFix = &geo.Point{Lat: *req.InitialLat, Lng: *req.InitialLng}
	}

	booking, err := h.dispatchService.Accept(c.Request.Context(), accept)
	if err != nil {
		respondError(c, err)
		return
	}

	observability.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// RefuseBooking handles POST /v1/driver/bookings/:id/refuse
func (h *DriverHandler) RefuseBooking(c *gin.Context) {
	booking, err := h.dispatchService.Refuse(c.Request.Context(), c.Param("id"), middleware.DriverID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	observability.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CompleteBooking handles POST /v1/driver/bookings/:id/complete
func (h *DriverHandler) CompleteBooking(c *gin.Context) {
	booking, err := h.dispatchService.Complete(c.Request.Context(), c.Param("id"), middleware.DriverID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	observability.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// RecordLocationRequest is the HTTP request body for a GPS fix.
type RecordLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RecordLocationResponse is the HTTP response for a GPS fix.
type RecordLocationResponse struct {
	Recorded  bool              `json:"recorded"`
	Throttled bool              `json:"throttled"`
	Update    *LocationResponse `json:"update,omitempty"`
}

// RecordLocation handles POST /v1/driver/bookings/:id/location
func (h *DriverHandler) RecordLocation(c *gin.Context) {
	var req RecordLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	update, throttled, err := h.trackingService.RecordGPS(c.Request.Context(), middleware.DriverID(c), c.Param("id"), req.Lat, req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	if throttled {
		observability.LocationUpdatesThrottled.Inc()
		respondJSON(c, http.StatusOK, RecordLocationResponse{Recorded: false, Throttled: true})
		return
	}

	observability.LocationUpdatesRecorded.WithLabelValues(string(update.Source)).Inc()
	location := toLocationResponse(update)
	respondJSON(c, http.StatusOK, RecordLocationResponse{Recorded: true, Update: &location})
}

// RecordLocationLinkRequest is the HTTP request body for a shared map link.
type RecordLocationLinkRequest struct {
	URL string `json:"url"`
}

// RecordLocationLink handles POST /v1/driver/bookings/:id/location/link
func (h *DriverHandler) RecordLocationLink(c *gin.Context) {
	var req RecordLocationLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	update, err := h.trackingService.RecordManual(c.Request.Context(), middleware.DriverID(c), c.Param("id"), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}

	observability.LocationUpdatesRecorded.WithLabelValues(string(update.Source)).Inc()
	respondJSON(c, http.StatusOK, toLocationResponse(update))
}

// StopTracking handles POST /v1/driver/tracking/stop
func (h *DriverHandler) StopTracking(c *gin.Context) {
	if err := h.trackingService.Stop(c.Request.Context(), middleware.DriverID(c)); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"stopped": true})
}
