package service

import "errors"

var (
	// ErrInvalidBookingID is returned when a booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidDriverID is returned when a driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrMissingRequiredField is returned when a booking submission omits
	// a required field.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidPickupLocation is returned when pickup coordinates are
	// out of range.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidPosition is returned when a location update carries
	// out-of-range coordinates.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrBookingNotPending is returned when accept or refuse is attempted
	// on a booking that already left pending.
	ErrBookingNotPending = errors.New("booking is not pending")

	// ErrBookingNotInProgress is returned when complete is attempted on a
	// booking that is not in an in-progress state.
	ErrBookingNotInProgress = errors.New("booking is not in progress")

	// ErrNotBookingDriver is returned when a driver acts on a booking
	// assigned to someone else.
	ErrNotBookingDriver = errors.New("booking belongs to another driver")

	// ErrNoActiveSession is returned when a GPS write arrives for a
	// booking the driver is not currently tracking. This is the fencing
	// check: late callbacks from a stopped or superseded watch land here.
	ErrNoActiveSession = errors.New("no active tracking session for booking")

	// ErrInvalidCredentials is returned on a failed driver login.
	ErrInvalidCredentials = errors.New("invalid email or pin")
)
