package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"towdispatch/internal/geo"
	"towdispatch/internal/repository"
	"towdispatch/internal/service"
)

// ErrorResponse represents an error response. Success is always false;
// it mirrors the flag the submission success path carries, so clients
// can branch on one field for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var unparsable *geo.UnparsableLocationError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrMissingRequiredField),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidPosition),
		errors.As(err, &unparsable):
		return http.StatusBadRequest

	// Auth errors
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNotBookingDriver):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrBookingNotPending),
		errors.Is(err, service.ErrBookingNotInProgress),
		errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, repository.ErrStaleState):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
