package service

import (
	"errors"

	"taximeter/internal/meter"
)

var (
	// ErrNoActiveTrip is returned when an operation needs a running trip.
	// On finish it is reported to the caller as a warning.
	ErrNoActiveTrip = meter.ErrNoActiveTrip

	// ErrTripAlreadyActive is returned when starting while a trip is running.
	ErrTripAlreadyActive = errors.New("trip already active")

	// ErrNoReceipt is returned when no trip has finished yet.
	ErrNoReceipt = errors.New("no receipt available")

	// ErrInvalidDuration is returned when a quoted duration is negative or not a number.
	ErrInvalidDuration = meter.ErrInvalidDuration

	// ErrInvalidState is returned when a transition targets a state other than stopped or moving.
	ErrInvalidState = errors.New("invalid meter state")
)
