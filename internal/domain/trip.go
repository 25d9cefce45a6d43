package domain

import "time"

// Trip records the boundaries of the current or most recent trip.
type Trip struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time // zero while the trip is running
	Fare      float64   // set when the trip finishes
}

// Receipt represents a trip receipt.
type Receipt struct {
	ID              string
	TripID          string
	StoppedDuration time.Duration
	MovingDuration  time.Duration
	StoppedRate     float64
	MovingRate      float64
	StoppedCharge   float64
	MovingCharge    float64
	Subtotal        float64 // linear fare before the floor
	MinimumFare     float64
	MinimumApplied  bool
	TotalFare       float64
	CurrencySymbol  string
	StartedAt       time.Time
	EndedAt         time.Time
	CreatedAt       time.Time
}

// Duration returns the total metered time of the trip.
func (r *Receipt) Duration() time.Duration {
	return r.StoppedDuration + r.MovingDuration
}
