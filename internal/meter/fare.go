package meter

import (
	"fmt"
	"math"

	"taximeter/internal/domain"
)

// FareCalculator applies the per-second rates and the minimum-fare floor.
type FareCalculator struct {
	rates domain.Rates
}

// NewFareCalculator creates a FareCalculator after validating the rates.
func NewFareCalculator(rates domain.Rates) (*FareCalculator, error) {
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}
	return &FareCalculator{rates: rates}, nil
}

// ValidateRates rejects negative, NaN or infinite rates.
func ValidateRates(r domain.Rates) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"stopped rate", r.StoppedPerSecond},
		{"moving rate", r.MovingPerSecond},
		{"minimum fare", r.MinimumFare},
	}
	for _, c := range checks {
		if c.value < 0 || math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidRates, c.name, c.value)
		}
	}
	return nil
}

// Rates returns the configured rates.
func (c *FareCalculator) Rates() domain.Rates {
	return c.rates
}

// Calculate returns max(stopped*stoppedRate + moving*movingRate, minimumFare).
// No rounding is applied; formatting is left to the caller.
func (c *FareCalculator) Calculate(stoppedSeconds, movingSeconds float64) float64 {
	fare := c.linear(stoppedSeconds, movingSeconds)
	if fare < c.rates.MinimumFare {
		return c.rates.MinimumFare
	}
	return fare
}

func (c *FareCalculator) linear(stoppedSeconds, movingSeconds float64) float64 {
	return stoppedSeconds*c.rates.StoppedPerSecond + movingSeconds*c.rates.MovingPerSecond
}

// Breakdown itemizes a fare.
type Breakdown struct {
	StoppedCharge  float64
	MovingCharge   float64
	Subtotal       float64
	MinimumApplied bool
	Total          float64
}

// Breakdown itemizes the fare for the given seconds. Total always equals
// Calculate for the same inputs.
func (c *FareCalculator) Breakdown(stoppedSeconds, movingSeconds float64) Breakdown {
	b := Breakdown{
		StoppedCharge: stoppedSeconds * c.rates.StoppedPerSecond,
		MovingCharge:  movingSeconds * c.rates.MovingPerSecond,
	}
	b.Subtotal = c.linear(stoppedSeconds, movingSeconds)
	b.Total = c.Calculate(stoppedSeconds, movingSeconds)
	b.MinimumApplied = b.Subtotal < c.rates.MinimumFare
	return b
}

// ValidateSeconds rejects negative, NaN or infinite durations.
func ValidateSeconds(values ...float64) error {
	for _, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidDuration, v)
		}
	}
	return nil
}
