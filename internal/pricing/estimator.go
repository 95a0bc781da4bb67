package pricing

import "time"

// Quote carries the inputs a pricing policy may consult. Each policy
// reads only the fields its dimension set defines; the rest are ignored.
type Quote struct {
	DistanceKm  float64
	ServiceType string
	Timing      string    // booking policy: now, 1hour, today, tomorrow, scheduled
	RequestedAt time.Time // booking policy: time-of-day/weekday multipliers
	VehicleType string    // calculator policy
	TimeOfDay   string    // calculator policy: day, evening, night
	Weekend     bool      // calculator policy
}

// Breakdown itemizes how an estimate was reached.
type Breakdown struct {
	BasePrice         float64 `json:"base_price"`
	DistanceCharge    float64 `json:"distance_charge"`
	ServiceMultiplier float64 `json:"service_multiplier,omitempty"`
	TimeMultiplier    float64 `json:"time_multiplier,omitempty"`
	UrgencyMultiplier float64 `json:"urgency_multiplier,omitempty"`
	VehicleMultiplier float64 `json:"vehicle_multiplier,omitempty"`
	TimeSurcharge     float64 `json:"time_surcharge,omitempty"`
	WeekendSurcharge  float64 `json:"weekend_surcharge,omitempty"`
	Total             float64 `json:"total"`
}

// Estimate is a price range with its breakdown. The range is advisory
// only and is never treated as a billing commitment.
type Estimate struct {
	Low       float64   `json:"low"`
	High      float64   `json:"high"`
	Breakdown Breakdown `json:"breakdown"`
}

// Estimator is a named pricing policy.
//
// Two policies coexist by design: the booking-time estimator and the
// pre-sales calculator carry independently tuned rates and dimensions.
// They must not be merged into one source of truth without product
// confirmation that the divergence is accidental.
type Estimator interface {
	Name() string
	Estimate(q Quote) Estimate
}
