package tests

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/service"
)

func newFixture(t *testing.T) *MeterFixture {
	t.Helper()
	f, err := NewMeterFixture()
	if err != nil {
		t.Fatalf("failed to build meter fixture: %v", err)
	}
	return f
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ──────────────────────────────────────────────
// 1. STARTING A TRIP
// ──────────────────────────────────────────────

func TestStartTrip_AssignsIDAndStartsStopped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	trip, err := f.Service.StartTrip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.ID == "" {
		t.Error("expected trip ID to be set")
	}
	if !trip.StartedAt.Equal(f.Clock.Now()) {
		t.Errorf("expected StartedAt %v, got %v", f.Clock.Now(), trip.StartedAt)
	}

	snapshot := f.Service.Snapshot(ctx)
	if snapshot.State != domain.MeterStateStopped {
		t.Errorf("expected state stopped, got %s", snapshot.State)
	}
	if snapshot.TripID != trip.ID {
		t.Errorf("expected snapshot trip ID %s, got %s", trip.ID, snapshot.TripID)
	}
	if !snapshot.Active {
		t.Error("expected snapshot to be active")
	}
}

func TestStartTrip_WhileActive_ReturnsAlreadyActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.Service.StartTrip(ctx)
	f.Clock.Advance(10 * time.Second)

	_, err := f.Service.StartTrip(ctx)
	if !errors.Is(err, service.ErrTripAlreadyActive) {
		t.Fatalf("expected ErrTripAlreadyActive, got %v", err)
	}

	// The running trip keeps its identity and accrued time.
	snapshot := f.Service.Snapshot(ctx)
	if snapshot.TripID != first.ID {
		t.Errorf("expected trip %s to keep running, got %s", first.ID, snapshot.TripID)
	}
	if snapshot.Stopped != 10*time.Second {
		t.Errorf("expected 10s stopped, got %v", snapshot.Stopped)
	}
}

func TestStartTrip_StartedAtIsWhenAccrualBegan(t *testing.T) {
	t.Parallel()

	// Every clock read moves time forward by one second.
	clock := NewFakeClock()
	ticking := func() time.Time {
		now := clock.Now()
		clock.Advance(time.Second)
		return now
	}
	tripMeter, err := meter.New(domain.DefaultRates(), meter.WithClock(ticking))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fares := tripMeter.Fares()
	svc := service.NewMeterService(tripMeter, service.NewReceiptService(fares, nil, "€"), nil, "€")
	ctx := context.Background()

	trip, err := svc.StartTrip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.FinishTrip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	elapsed := result.Trip.EndedAt.Sub(trip.StartedAt)
	if elapsed != result.Receipt.Duration() {
		t.Errorf("trip boundaries span %v but %v was accrued", elapsed, result.Receipt.Duration())
	}
}

func TestCurrentTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, ok := f.Service.CurrentTrip(ctx); ok {
		t.Fatal("expected no trip before the first start")
	}

	started, _ := f.Service.StartTrip(ctx)
	current, ok := f.Service.CurrentTrip(ctx)
	if !ok || current.ID != started.ID {
		t.Fatalf("expected current trip %s, got %+v", started.ID, current)
	}
	if !current.EndedAt.IsZero() {
		t.Error("expected running trip to have no end")
	}

	f.Clock.Advance(time.Minute)
	f.Service.FinishTrip(ctx)
	finished, ok := f.Service.CurrentTrip(ctx)
	if !ok || finished.EndedAt.IsZero() {
		t.Errorf("expected the finished trip to be kept, got %+v", finished)
	}
}

func TestReset_DropsTripAndReceipt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Service.FinishTrip(ctx)
	f.Service.StartTrip(ctx)
	f.Clock.Advance(time.Minute)

	f.Service.Reset()

	if _, ok := f.Service.CurrentTrip(ctx); ok {
		t.Error("expected no current trip after reset")
	}
	if _, err := f.Service.LastReceipt(ctx); !errors.Is(err, service.ErrNoReceipt) {
		t.Errorf("expected ErrNoReceipt after reset, got %v", err)
	}
	snapshot := f.Service.Snapshot(ctx)
	if snapshot.State != domain.MeterStateInactive || snapshot.Stopped != 0 {
		t.Errorf("expected an idle meter after reset, got %+v", snapshot)
	}
}

// ──────────────────────────────────────────────
// 2. STATE TRANSITIONS
// ──────────────────────────────────────────────

func TestSetState_WithoutTrip_IsIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	snapshot, err := f.Service.SetMoving(ctx)
	if !errors.Is(err, service.ErrNoActiveTrip) {
		t.Fatalf("expected ErrNoActiveTrip, got %v", err)
	}
	if snapshot.State != domain.MeterStateInactive {
		t.Errorf("expected inactive meter, got %s", snapshot.State)
	}
	if len(f.Publisher.Notifications()) != 0 {
		t.Error("expected no notifications for an ignored transition")
	}
}

func TestSetState_RejectsNonSegmentState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.Service.SetState(context.Background(), domain.MeterStateFinished)
	if !errors.Is(err, service.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestMixedTrip_FareMatchesRates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Clock.Advance(30 * time.Second)
	f.Service.SetMoving(ctx)
	f.Clock.Advance(120 * time.Second)
	f.Service.SetStopped(ctx)
	f.Clock.Advance(10 * time.Second)

	live := f.Service.Snapshot(ctx)
	if live.Stopped != 40*time.Second || live.Moving != 120*time.Second {
		t.Errorf("expected 40s stopped / 120s moving, got %v / %v", live.Stopped, live.Moving)
	}

	result, err := f.Service.FinishTrip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 40*0.02 + 120*0.05 = 6.80
	if !almostEqual(result.Trip.Fare, 6.80) {
		t.Errorf("expected fare 6.80, got %v", result.Trip.Fare)
	}
	if result.Message != "TRIP FINISHED. Fare to pay: €6.80" {
		t.Errorf("unexpected message %q", result.Message)
	}
}

// ──────────────────────────────────────────────
// 3. FINISHING A TRIP
// ──────────────────────────────────────────────

func TestFinishTrip_ShortTripPaysMinimumFare(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Clock.Advance(10 * time.Second)

	result, err := f.Service.FinishTrip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(result.Trip.Fare, 5.00) {
		t.Errorf("expected minimum fare 5.00, got %v", result.Trip.Fare)
	}
	if result.Receipt == nil {
		t.Fatal("expected a receipt")
	}
	if !result.Receipt.MinimumApplied {
		t.Error("expected receipt to flag the minimum fare")
	}
	if !almostEqual(result.Receipt.Subtotal, 0.20) {
		t.Errorf("expected subtotal 0.20, got %v", result.Receipt.Subtotal)
	}
}

func TestFinishTrip_FreezesFareInView(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Service.SetMoving(ctx)
	f.Clock.Advance(200 * time.Second)
	f.Service.FinishTrip(ctx)

	f.Clock.Advance(time.Hour)
	snapshot := f.Service.Snapshot(ctx)
	if snapshot.State != domain.MeterStateFinished {
		t.Errorf("expected finished state, got %s", snapshot.State)
	}
	if snapshot.Stopped != 0 || snapshot.Moving != 0 {
		t.Errorf("expected cleared totals, got %v / %v", snapshot.Stopped, snapshot.Moving)
	}
	if !almostEqual(snapshot.Fare, 10.00) {
		t.Errorf("expected frozen fare 10.00, got %v", snapshot.Fare)
	}
	if !snapshot.Controls.CanStart || snapshot.Controls.CanFinish {
		t.Errorf("unexpected controls after finish: %+v", snapshot.Controls)
	}
}

func TestFinishTrip_WithoutTrip_WarnsAndNotifies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.Service.FinishTrip(context.Background())
	if !errors.Is(err, service.ErrNoActiveTrip) {
		t.Fatalf("expected ErrNoActiveTrip, got %v", err)
	}

	notifications := f.Publisher.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Type != service.NotificationNoActiveTrip || !notifications[0].Warning {
		t.Errorf("expected NO_ACTIVE_TRIP warning, got %+v", notifications[0])
	}
	if notifications[0].Message != service.NoActiveTripMessage {
		t.Errorf("unexpected message %q", notifications[0].Message)
	}
}

func TestFinishTrip_Twice_SecondIsWarning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Clock.Advance(5 * time.Minute)
	first, err := f.Service.FinishTrip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.Service.FinishTrip(ctx)
	if !errors.Is(err, service.ErrNoActiveTrip) {
		t.Fatalf("expected ErrNoActiveTrip, got %v", err)
	}

	// The frozen fare survives the ignored second finish.
	snapshot := f.Service.Snapshot(ctx)
	if !almostEqual(snapshot.Fare, first.Trip.Fare) {
		t.Errorf("expected fare %v, got %v", first.Trip.Fare, snapshot.Fare)
	}
}

func TestFinishTrip_NotificationOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Service.SetMoving(ctx)
	f.Service.SetStopped(ctx)
	f.Service.FinishTrip(ctx)

	want := []service.NotificationType{
		service.NotificationTripStarted,
		service.NotificationTripMoving,
		service.NotificationTripStopped,
		service.NotificationTripFinished,
		service.NotificationReceiptReady,
	}
	got := f.Publisher.Types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFinishTrip_PublisherFailureDoesNotFailTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.Publisher.Fail = true

	f.Service.StartTrip(ctx)
	result, err := f.Service.FinishTrip(ctx)
	if err != nil {
		t.Fatalf("expected finish to succeed, got %v", err)
	}
	if result.Receipt == nil {
		t.Error("expected a receipt despite publisher failure")
	}
}

// ──────────────────────────────────────────────
// 4. RECEIPTS
// ──────────────────────────────────────────────

func TestLastReceipt_NoneBeforeFirstFinish(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.Service.LastReceipt(context.Background())
	if !errors.Is(err, service.ErrNoReceipt) {
		t.Fatalf("expected ErrNoReceipt, got %v", err)
	}
}

func TestLastReceipt_ClearedByNewTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Service.FinishTrip(ctx)
	if _, err := f.Service.LastReceipt(ctx); err != nil {
		t.Fatalf("expected receipt after finish, got %v", err)
	}

	f.Service.StartTrip(ctx)
	if _, err := f.Service.LastReceipt(ctx); !errors.Is(err, service.ErrNoReceipt) {
		t.Errorf("expected receipt to be cleared by new trip, got %v", err)
	}
}

func TestFormatReceipt_ContainsBreakdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.Service.StartTrip(ctx)
	f.Service.SetMoving(ctx)
	f.Clock.Advance(65 * time.Second)
	f.Service.SetStopped(ctx)
	f.Clock.Advance(100 * time.Second)
	f.Service.FinishTrip(ctx)

	receipt, err := f.Service.LastReceipt(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := f.Service.FormatReceipt(receipt)

	for _, want := range []string{
		"TAXIMETER RECEIPT",
		"Moving:     1m 05s",
		"Stopped:    1m 40s",
		"Total:      2m 45s",
		"TOTAL:              €5.25",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected receipt to contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Minimum fare") {
		t.Error("expected no minimum fare line above the floor")
	}
}

// ──────────────────────────────────────────────
// 5. FARE QUOTES
// ──────────────────────────────────────────────

func TestQuoteFare(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name            string
		stopped, moving float64
		want            float64
		wantErr         error
	}{
		{name: "zero pays minimum", want: 5.00},
		{name: "stopped only", stopped: 300, want: 6.00},
		{name: "moving only", moving: 200, want: 10.00},
		{name: "negative rejected", stopped: -1, wantErr: service.ErrInvalidDuration},
		{name: "NaN rejected", moving: math.NaN(), wantErr: service.ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Service.QuoteFare(context.Background(), tt.stopped, tt.moving)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// ──────────────────────────────────────────────
// 6. CONCURRENCY
// ──────────────────────────────────────────────

func TestConcurrentStart_OnlyOneTripStarts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Service.StartTrip(ctx); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Errorf("expected exactly 1 trip to start, got %d", started)
	}
}

func TestConcurrentReadsDuringTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.Service.StartTrip(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.Service.SetMoving(ctx)
			f.Service.SetStopped(ctx)
		}()
		go func() {
			defer wg.Done()
			s := f.Service.Snapshot(ctx)
			if s.Stopped < 0 || s.Moving < 0 {
				t.Errorf("negative totals in snapshot: %+v", s)
			}
		}()
	}
	wg.Wait()

	if _, err := f.Service.FinishTrip(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
