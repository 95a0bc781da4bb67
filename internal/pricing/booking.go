package pricing

import (
	"math"
	"time"
)

// Booking-time pricing configuration.
const (
	bookingBasePrice  = 75.0
	bookingPricePerKm = 3.5

	nightMultiplier    = 1.4  // 22:00-06:00
	weekendMultiplier  = 1.25 // Saturday, Sunday; stacks multiplicatively
	rushHourMultiplier = 1.15 // weekday 07:00-09:00 and 16:00-19:00
	regularMultiplier  = 1.0

	// Fixed uncertainty band around the computed subtotal.
	bandLow  = 0.9
	bandHigh = 1.1
)

var serviceMultipliers = map[string]float64{
	"emergency": 1.5,
	"flatbed":   1.3,
	"battery":   0.8,
	"roadside":  0.7,
	"lockout":   0.6,
	"recovery":  1.4,
}

var urgencyMultipliers = map[string]float64{
	"now":       1.2,
	"1hour":     1.1,
	"today":     1.0,
	"tomorrow":  0.95,
	"scheduled": 0.9,
}

// BookingEstimator is the pricing policy applied at booking submission.
type BookingEstimator struct{}

// NewBookingEstimator creates the booking-time pricing policy.
func NewBookingEstimator() *BookingEstimator {
	return &BookingEstimator{}
}

// Name returns the policy name.
func (e *BookingEstimator) Name() string { return "booking" }

// Estimate derives a price range from distance, service type, request
// time and urgency. Factors are multiplicative and applied in a fixed
// order. An unknown service type falls back to the emergency multiplier
// and an unknown timing to 1.0; both fallbacks are deliberate fail-open
// behavior, not errors.
func (e *BookingEstimator) Estimate(q Quote) Estimate {
	basePrice := bookingBasePrice
	distanceCharge := q.DistanceKm * bookingPricePerKm

	serviceMult := ServiceMultiplier(q.ServiceType)
	timeMult := timeMultiplier(q.RequestedAt)
	urgencyMult := UrgencyMultiplier(q.Timing)

	subtotal := (basePrice + distanceCharge) * serviceMult
	total := subtotal * timeMult * urgencyMult

	return Estimate{
		Low:  math.Round(total * bandLow),
		High: math.Round(total * bandHigh),
		Breakdown: Breakdown{
			BasePrice:         basePrice,
			DistanceCharge:    math.Round(distanceCharge),
			ServiceMultiplier: serviceMult,
			TimeMultiplier:    timeMult,
			UrgencyMultiplier: urgencyMult,
			Total:             math.Round(total),
		},
	}
}

// ServiceMultiplier returns the multiplier for a service type, falling
// open to the emergency rate for unknown types.
func ServiceMultiplier(serviceType string) float64 {
	if m, ok := serviceMultipliers[serviceType]; ok {
		return m
	}
	return serviceMultipliers["emergency"]
}

// UrgencyMultiplier returns the multiplier for a timing selection,
// defaulting to 1.0 for unknown values.
func UrgencyMultiplier(timing string) float64 {
	if m, ok := urgencyMultipliers[timing]; ok {
		return m
	}
	return 1.0
}

// timeMultiplier derives the time-of-day factor. Night and rush hour are
// mutually exclusive via max(); the weekend factor stacks
// multiplicatively with whichever applies.
func timeMultiplier(at time.Time) float64 {
	hour := at.Hour()
	day := at.Weekday()

	multiplier := regularMultiplier

	if hour >= 22 || hour < 6 {
		multiplier = math.Max(multiplier, nightMultiplier)
	}

	if day >= time.Monday && day <= time.Friday {
		if (hour >= 7 && hour < 9) || (hour >= 16 && hour < 19) {
			multiplier = math.Max(multiplier, rushHourMultiplier)
		}
	}

	if day == time.Saturday || day == time.Sunday {
		multiplier *= weekendMultiplier
	}

	return multiplier
}
