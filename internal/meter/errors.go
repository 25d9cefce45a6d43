package meter

import "errors"

var (
	// ErrNoActiveTrip is returned by Finish when no trip is running. It is an
	// advisory: the meter is left untouched.
	ErrNoActiveTrip = errors.New("no active trip to finish")

	// ErrInvalidRates is returned when a rate or the minimum fare is negative.
	ErrInvalidRates = errors.New("invalid rates")

	// ErrInvalidDuration is returned when a duration to price is negative or not a number.
	ErrInvalidDuration = errors.New("invalid duration")
)
