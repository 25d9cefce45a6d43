// Package meter implements the trip timer state machine and the fare formula.
//
// A TripMeter accumulates elapsed time in two mutually exclusive states,
// stopped and moving. Time is folded into the accumulators only at
// transitions and at finish; live readings add the open segment on top
// without mutating anything.
package meter

import (
	"sync"
	"time"

	"taximeter/internal/domain"
)

// TripMeter holds the accounting of a single trip. All methods are safe for
// concurrent use; the accumulators and segment start are always read and
// written together under one lock.
type TripMeter struct {
	mu    sync.Mutex
	fares *FareCalculator
	now   func() time.Time

	active             bool
	state              domain.MeterState
	accumulatedStopped time.Duration
	accumulatedMoving  time.Duration
	segmentStart       time.Time
	lastFare           float64
}

// Option configures a TripMeter.
type Option func(*TripMeter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *TripMeter) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates an inactive TripMeter with both accumulators at zero.
func New(rates domain.Rates, opts ...Option) (*TripMeter, error) {
	fares, err := NewFareCalculator(rates)
	if err != nil {
		return nil, err
	}

	m := &TripMeter{
		fares: fares,
		now:   time.Now,
		state: domain.MeterStateInactive,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Result is the outcome of a finished trip, captured before the
// accumulators are cleared.
type Result struct {
	Stopped time.Duration
	Moving  time.Duration
	Fare    float64
	EndedAt time.Time
}

// Reading is a consistent view of the meter at one instant.
type Reading struct {
	State   domain.MeterState
	Active  bool
	Stopped time.Duration
	Moving  time.Duration
	Fare    float64
	At      time.Time
}

// Start begins a fresh trip in the stopped state, discarding whatever the
// previous trip left behind. It returns the instant accrual began. While a
// trip is running it is a no-op and ok is false.
func (m *TripMeter) Start() (startedAt time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return time.Time{}, false
	}

	m.active = true
	m.state = domain.MeterStateStopped
	m.accumulatedStopped = 0
	m.accumulatedMoving = 0
	m.segmentStart = m.now()
	return m.segmentStart, true
}

// Transition folds the open segment into the accumulator of the current
// state and switches to next. Transitioning to the current state still
// folds and restarts the segment. It is a no-op while inactive or when next
// is not stopped/moving, and reports whether it took effect.
func (m *TripMeter) Transition(next domain.MeterState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || !next.IsSegment() {
		return false
	}

	now := m.now()
	m.accrue(now)
	m.state = next
	m.segmentStart = now
	return true
}

// Finish closes the trip: the last segment is accrued, the fare is computed
// and frozen, and the meter goes to the finished state with cleared
// accumulators. Without an active trip it returns ErrNoActiveTrip and
// changes nothing.
func (m *TripMeter) Finish() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return Result{}, ErrNoActiveTrip
	}

	now := m.now()
	m.accrue(now)

	result := Result{
		Stopped: m.accumulatedStopped,
		Moving:  m.accumulatedMoving,
		EndedAt: now,
	}
	result.Fare = m.fares.Calculate(result.Stopped.Seconds(), result.Moving.Seconds())
	m.lastFare = result.Fare

	m.active = false
	m.accumulatedStopped = 0
	m.accumulatedMoving = 0
	m.segmentStart = time.Time{}
	m.state = domain.MeterStateFinished

	return result, nil
}

// LiveSnapshot returns the stopped and moving totals including the open
// segment. It never mutates the meter.
func (m *TripMeter) LiveSnapshot() (stopped, moving time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.live(m.now())
}

// Read returns state, totals and the fare to display in one consistent
// view. A finished meter reports the frozen fare.
func (m *TripMeter) Read() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stopped, moving := m.live(now)

	fare := m.fares.Calculate(stopped.Seconds(), moving.Seconds())
	if m.state == domain.MeterStateFinished {
		fare = m.lastFare
	}

	return Reading{
		State:   m.state,
		Active:  m.active,
		Stopped: stopped,
		Moving:  moving,
		Fare:    fare,
		At:      now,
	}
}

// CalculateFare applies the configured rates and floor.
func (m *TripMeter) CalculateFare(stoppedSeconds, movingSeconds float64) float64 {
	return m.fares.Calculate(stoppedSeconds, movingSeconds)
}

// Fares returns the calculator used by the meter.
func (m *TripMeter) Fares() *FareCalculator {
	return m.fares
}

// State returns the current phase.
func (m *TripMeter) State() domain.MeterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether a trip is running.
func (m *TripMeter) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LastFare returns the fare frozen by the last Finish. Only meaningful when
// the state is finished.
func (m *TripMeter) LastFare() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFare
}

// Reset returns the meter to its initial inactive state.
func (m *TripMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = false
	m.state = domain.MeterStateInactive
	m.accumulatedStopped = 0
	m.accumulatedMoving = 0
	m.segmentStart = time.Time{}
	m.lastFare = 0
}

// accrue adds the open segment to the accumulator of the current state.
// Caller holds mu.
func (m *TripMeter) accrue(now time.Time) {
	elapsed := m.elapsed(now)
	if m.state == domain.MeterStateStopped {
		m.accumulatedStopped += elapsed
	} else {
		m.accumulatedMoving += elapsed
	}
}

// live projects the totals at now. Caller holds mu.
func (m *TripMeter) live(now time.Time) (stopped, moving time.Duration) {
	stopped, moving = m.accumulatedStopped, m.accumulatedMoving
	if !m.active {
		return stopped, moving
	}

	switch m.state {
	case domain.MeterStateStopped:
		stopped += m.elapsed(now)
	case domain.MeterStateMoving:
		moving += m.elapsed(now)
	}
	return stopped, moving
}

// elapsed is the open segment length, clamped at zero if the clock went
// backwards. Caller holds mu.
func (m *TripMeter) elapsed(now time.Time) time.Duration {
	d := now.Sub(m.segmentStart)
	if d < 0 {
		return 0
	}
	return d
}
