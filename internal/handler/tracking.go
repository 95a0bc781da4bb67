package handler

import (
	"github.com/gin-gonic/gin"

	"towdispatch/internal/service"
)

// TrackingHandler serves the public tracker page data. Access control is
// the tracking token itself: whoever holds the link sees the booking.
type TrackingHandler struct {
	bookingService *service.BookingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(bookingService *service.BookingService) *TrackingHandler {
	return &TrackingHandler{bookingService: bookingService}
}

// TrackingResponse is the HTTP response for the public tracker.
type TrackingResponse struct {
	Booking         BookingResponse    `json:"booking"`
	Driver          *DriverResponse    `json:"driver,omitempty"`
	CurrentLocation *LocationResponse  `json:"current_location,omitempty"`
	Locations       []LocationResponse `json:"locations"`
}

// Track handles GET /v1/track/:token
func (h *TrackingHandler) Track(c *gin.Context) {
	view, err := h.bookingService.GetByTrackingToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := TrackingResponse{
		Booking:   toBookingResponse(view.Booking),
		Locations: make([]LocationResponse, 0, len(view.Locations)),
	}
	if view.Driver != nil {
		driver := toDriverResponse(view.Driver)
		response.Driver = &driver
	}
	if view.Current != nil {
		current := toLocationResponse(view.Current)
		response.CurrentLocation = &current
	}
	for _, u := range view.Locations {
		response.Locations = append(response.Locations, toLocationResponse(u))
	}

	respondJSON(c, 200, response)
}
