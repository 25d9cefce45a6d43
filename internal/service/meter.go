package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
)

// NoActiveTripMessage is the advisory shown when finishing without a trip.
const NoActiveTripMessage = "No active trip to finish."

// MeterService owns the single TripMeter of the process and layers trip
// identity, receipts and notifications on top of it.
type MeterService struct {
	mu sync.Mutex

	meter               *meter.TripMeter
	receiptService      *ReceiptService
	notificationService *NotificationService
	currencySymbol      string
	newID               func() string

	trip        *domain.Trip
	lastReceipt *domain.Receipt
}

// NewMeterService creates a new MeterService.
func NewMeterService(
	tripMeter *meter.TripMeter,
	receiptService *ReceiptService,
	notificationService *NotificationService,
	currencySymbol string,
) *MeterService {
	return &MeterService{
		meter:               tripMeter,
		receiptService:      receiptService,
		notificationService: notificationService,
		currencySymbol:      currencySymbol,
		newID:               func() string { return uuid.New().String() },
	}
}

// StartTrip starts a fresh trip. Starting while a trip runs returns
// ErrTripAlreadyActive and leaves the running trip alone.
func (s *MeterService) StartTrip(ctx context.Context) (*domain.Trip, error) {
	s.mu.Lock()
	startedAt, ok := s.meter.Start()
	if !ok {
		s.mu.Unlock()
		return nil, ErrTripAlreadyActive
	}

	s.trip = &domain.Trip{
		ID:        s.newID(),
		StartedAt: startedAt,
	}
	s.lastReceipt = nil
	trip := *s.trip
	s.mu.Unlock()

	log.WithField("trip_id", trip.ID).Info("trip started")

	if s.notificationService != nil {
		_ = s.notificationService.NotifyTripStarted(ctx, &trip)
	}

	return &trip, nil
}

// SetMoving switches the running trip to the moving rate.
func (s *MeterService) SetMoving(ctx context.Context) (domain.Snapshot, error) {
	return s.SetState(ctx, domain.MeterStateMoving)
}

// SetStopped switches the running trip to the stopped rate.
func (s *MeterService) SetStopped(ctx context.Context) (domain.Snapshot, error) {
	return s.SetState(ctx, domain.MeterStateStopped)
}

// SetState folds the open segment and switches to state. Without a running
// trip it returns ErrNoActiveTrip and the meter is unchanged.
func (s *MeterService) SetState(ctx context.Context, state domain.MeterState) (domain.Snapshot, error) {
	if !state.IsSegment() {
		return domain.Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	s.mu.Lock()
	if !s.meter.Transition(state) {
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		return snapshot, ErrNoActiveTrip
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"trip_id": snapshot.TripID,
		"state":   state,
	}).Debug("meter state changed")

	if s.notificationService != nil {
		_ = s.notificationService.NotifyStateChanged(ctx, snapshot.TripID, state)
	}

	return snapshot, nil
}

// FinishTripResponse contains the result of finishing a trip.
type FinishTripResponse struct {
	Trip    *domain.Trip
	Receipt *domain.Receipt
	Message string
}

// FinishTrip closes the running trip, freezes the fare and produces a
// receipt. Without a running trip it returns ErrNoActiveTrip, which callers
// surface as a warning.
func (s *MeterService) FinishTrip(ctx context.Context) (*FinishTripResponse, error) {
	s.mu.Lock()
	result, err := s.meter.Finish()
	if err != nil {
		s.mu.Unlock()
		log.Warn(NoActiveTripMessage)
		if s.notificationService != nil {
			_ = s.notificationService.NotifyNoActiveTrip(ctx)
		}
		return nil, err
	}

	if s.trip == nil {
		// The meter was started outside the service.
		s.trip = &domain.Trip{ID: s.newID()}
	}
	s.trip.EndedAt = result.EndedAt
	s.trip.Fare = result.Fare
	trip := *s.trip
	s.mu.Unlock()

	message := fmt.Sprintf("TRIP FINISHED. Fare to pay: %s", formatMoney(s.currencySymbol, result.Fare))

	log.WithFields(log.Fields{
		"trip_id":         trip.ID,
		"stopped_seconds": result.Stopped.Seconds(),
		"moving_seconds":  result.Moving.Seconds(),
		"fare":            result.Fare,
	}).Info("trip finished")

	if s.notificationService != nil {
		_ = s.notificationService.NotifyTripFinished(ctx, &trip, message)
	}

	var receipt *domain.Receipt
	if s.receiptService != nil {
		receipt, err = s.receiptService.GenerateReceipt(ctx, GenerateReceiptRequest{
			Trip:   &trip,
			Result: result,
		})
		if err != nil {
			// The trip is finished regardless; the receipt can be missing.
			log.WithField("trip_id", trip.ID).WithError(err).Error("failed to generate receipt")
			receipt = nil
		}
	}

	if receipt != nil {
		s.mu.Lock()
		if s.trip != nil && s.trip.ID == trip.ID {
			s.lastReceipt = receipt
		}
		s.mu.Unlock()
	}

	return &FinishTripResponse{
		Trip:    &trip,
		Receipt: receipt,
		Message: message,
	}, nil
}

// Snapshot returns the live view of the meter.
func (s *MeterService) Snapshot(ctx context.Context) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked reads the meter and trip together. Caller holds mu.
func (s *MeterService) snapshotLocked() domain.Snapshot {
	reading := s.meter.Read()

	snapshot := domain.Snapshot{
		State:    reading.State,
		Active:   reading.Active,
		Stopped:  reading.Stopped,
		Moving:   reading.Moving,
		Fare:     reading.Fare,
		Controls: domain.ControlsFor(reading.Active, reading.State),
		TakenAt:  reading.At,
	}
	if s.trip != nil && reading.State != domain.MeterStateInactive {
		snapshot.TripID = s.trip.ID
	}
	return snapshot
}

// CurrentTrip returns the running or most recently finished trip.
func (s *MeterService) CurrentTrip(ctx context.Context) (*domain.Trip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trip == nil {
		return nil, false
	}
	trip := *s.trip
	return &trip, true
}

// LastReceipt returns the receipt of the most recently finished trip.
func (s *MeterService) LastReceipt(ctx context.Context) (*domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastReceipt == nil {
		return nil, ErrNoReceipt
	}
	receipt := *s.lastReceipt
	return &receipt, nil
}

// FormatReceipt renders a receipt as plain text.
func (s *MeterService) FormatReceipt(receipt *domain.Receipt) string {
	if s.receiptService == nil {
		return ""
	}
	return s.receiptService.FormatReceipt(receipt)
}

// QuoteFare prices the given durations without touching the meter.
func (s *MeterService) QuoteFare(ctx context.Context, stoppedSeconds, movingSeconds float64) (float64, error) {
	if err := meter.ValidateSeconds(stoppedSeconds, movingSeconds); err != nil {
		return 0, err
	}
	return s.meter.CalculateFare(stoppedSeconds, movingSeconds), nil
}

// Rates returns the pricing model in use.
func (s *MeterService) Rates() domain.Rates {
	return s.meter.Fares().Rates()
}

// CurrencySymbol returns the symbol used in messages and receipts.
func (s *MeterService) CurrencySymbol() string {
	return s.currencySymbol
}

// FormatFare renders an amount with two decimals and the currency symbol.
func (s *MeterService) FormatFare(fare float64) string {
	return formatMoney(s.currencySymbol, fare)
}

// Reset drops the current trip and returns the meter to inactive.
func (s *MeterService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meter.Reset()
	s.trip = nil
	s.lastReceipt = nil
}
