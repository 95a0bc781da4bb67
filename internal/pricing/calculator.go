package pricing

import "math"

// Calculator pricing configuration. Tuned separately from the booking
// policy: different bases, a vehicle-type dimension, a per-km rate that
// only applies past an included distance, and flat time surcharges.
const (
	calculatorPerKm      = 4.0
	calculatorIncludedKm = 10.0
	calculatorWeekendFee = 20.0
	calculatorMinCharge  = 75.0
)

var calculatorServiceBases = map[string]float64{
	"standard": 85,
	"flatbed":  125,
	"battery":  55,
	"lockout":  75,
	"tire":     65,
	"fuel":     65,
	"winch":    125,
}

var vehicleMultipliers = map[string]float64{
	"compact":    1.0,
	"sedan":      1.0,
	"suv":        1.15,
	"suv_large":  1.25,
	"pickup":     1.2,
	"van":        1.15,
	"luxury":     1.35,
	"electric":   1.4,
	"motorcycle": 0.85,
}

var timeSurcharges = map[string]float64{
	"day":     0,  // 07:00-19:00
	"evening": 25, // 19:00-23:00
	"night":   50, // 23:00-07:00
}

// CalculatorEstimator is the pricing policy behind the pre-sales "what
// would this cost" calculator. It deliberately diverges from the
// booking-time policy.
type CalculatorEstimator struct{}

// NewCalculatorEstimator creates the calculator pricing policy.
func NewCalculatorEstimator() *CalculatorEstimator {
	return &CalculatorEstimator{}
}

// Name returns the policy name.
func (e *CalculatorEstimator) Name() string { return "calculator" }

// Estimate prices a quote on the calculator dimensions: service base,
// distance past the included allowance, vehicle multiplier, additive
// time and weekend surcharges, and a floor at the minimum charge.
func (e *CalculatorEstimator) Estimate(q Quote) Estimate {
	base, ok := calculatorServiceBases[q.ServiceType]
	if !ok {
		base = calculatorServiceBases["standard"]
	}

	vehicleMult, ok := vehicleMultipliers[q.VehicleType]
	if !ok {
		vehicleMult = 1.0
	}

	extraKm := math.Max(0, q.DistanceKm-calculatorIncludedKm)
	distanceFee := extraKm * calculatorPerKm

	subtotal := (base + distanceFee) * vehicleMult
	subtotal += timeSurcharges[q.TimeOfDay]

	weekendFee := 0.0
	if q.Weekend {
		weekendFee = calculatorWeekendFee
		subtotal += weekendFee
	}

	total := math.Max(subtotal, calculatorMinCharge)

	return Estimate{
		Low:  math.Round(total * bandLow),
		High: math.Round(total * bandHigh),
		Breakdown: Breakdown{
			BasePrice:         base,
			DistanceCharge:    math.Round(distanceFee),
			VehicleMultiplier: vehicleMult,
			TimeSurcharge:     timeSurcharges[q.TimeOfDay],
			WeekendSurcharge:  weekendFee,
			Total:             math.Round(total),
		},
	}
}
