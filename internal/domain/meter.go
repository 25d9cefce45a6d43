package domain

import "time"

// MeterState represents the current phase of the taximeter.
type MeterState string

const (
	MeterStateInactive MeterState = "inactive"
	MeterStateStopped  MeterState = "stopped"
	MeterStateMoving   MeterState = "moving"
	MeterStateFinished MeterState = "finished"
)

// IsSegment reports whether the state is one a trip can be in while running.
func (s MeterState) IsSegment() bool {
	return s == MeterStateStopped || s == MeterStateMoving
}

// Rates holds the pricing model of the meter.
type Rates struct {
	StoppedPerSecond float64 // currency per second while stopped
	MovingPerSecond  float64 // currency per second while moving
	MinimumFare      float64 // floor applied to every fare
}

// DefaultRates returns the standard pricing: 0.02/s stopped, 0.05/s moving, 5.00 minimum.
func DefaultRates() Rates {
	return Rates{
		StoppedPerSecond: 0.02,
		MovingPerSecond:  0.05,
		MinimumFare:      5.00,
	}
}

// Controls tells the presentation layer which operations make sense right now.
type Controls struct {
	CanStart  bool
	CanMove   bool
	CanStop   bool
	CanFinish bool
}

// Snapshot is a read-only view of the meter for live display.
type Snapshot struct {
	TripID   string
	State    MeterState
	Active   bool
	Stopped  time.Duration
	Moving   time.Duration
	Fare     float64
	Controls Controls
	TakenAt  time.Time
}

// ControlsFor derives the control enablement rules from the meter state.
func ControlsFor(active bool, state MeterState) Controls {
	return Controls{
		CanStart:  !active,
		CanMove:   active && state != MeterStateMoving,
		CanStop:   active && state != MeterStateStopped,
		CanFinish: active,
	}
}
