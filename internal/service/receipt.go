package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	fares               *meter.FareCalculator
	notificationService *NotificationService
	currencySymbol      string
	now                 func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(fares *meter.FareCalculator, notificationService *NotificationService, currencySymbol string) *ReceiptService {
	return &ReceiptService{
		fares:               fares,
		notificationService: notificationService,
		currencySymbol:      currencySymbol,
		now:                 time.Now,
	}
}

// GenerateReceiptRequest contains the parameters for generating a receipt.
type GenerateReceiptRequest struct {
	Trip   *domain.Trip
	Result meter.Result
}

// GenerateReceipt generates a receipt for a finished trip.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, req GenerateReceiptRequest) (*domain.Receipt, error) {
	if req.Trip == nil || req.Trip.ID == "" {
		return nil, fmt.Errorf("generate receipt: %w", ErrNoActiveTrip)
	}

	rates := s.fares.Rates()
	breakdown := s.fares.Breakdown(req.Result.Stopped.Seconds(), req.Result.Moving.Seconds())

	receipt := &domain.Receipt{
		ID:              uuid.New().String(),
		TripID:          req.Trip.ID,
		StoppedDuration: req.Result.Stopped,
		MovingDuration:  req.Result.Moving,
		StoppedRate:     rates.StoppedPerSecond,
		MovingRate:      rates.MovingPerSecond,
		StoppedCharge:   breakdown.StoppedCharge,
		MovingCharge:    breakdown.MovingCharge,
		Subtotal:        breakdown.Subtotal,
		MinimumFare:     rates.MinimumFare,
		MinimumApplied:  breakdown.MinimumApplied,
		// The meter's frozen fare is authoritative.
		TotalFare:      req.Result.Fare,
		CurrencySymbol: s.currencySymbol,
		StartedAt:      req.Trip.StartedAt,
		EndedAt:        req.Result.EndedAt,
		CreatedAt:      s.now(),
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyReceiptReady(ctx, receipt)
	}

	return receipt, nil
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	money := func(f float64) string { return formatMoney(receipt.CurrencySymbol, f) }

	b.WriteString("=====================================\n")
	b.WriteString("          TAXIMETER RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Trip ID:    %s\n", receipt.TripID)
	fmt.Fprintf(&b, "Date:       %s\n", receipt.CreatedAt.Format("Jan 02, 2006 3:04 PM"))
	b.WriteString("\nTRIP DETAILS\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Stopped:    %s\n", formatDuration(receipt.StoppedDuration))
	fmt.Fprintf(&b, "Moving:     %s\n", formatDuration(receipt.MovingDuration))
	fmt.Fprintf(&b, "Total:      %s\n", formatDuration(receipt.Duration()))
	b.WriteString("\nFARE BREAKDOWN\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Stopped @ %.2f/s:   %s\n", receipt.StoppedRate, money(receipt.StoppedCharge))
	fmt.Fprintf(&b, "Moving  @ %.2f/s:   %s\n", receipt.MovingRate, money(receipt.MovingCharge))
	fmt.Fprintf(&b, "Subtotal:           %s\n", money(receipt.Subtotal))
	if receipt.MinimumApplied {
		fmt.Fprintf(&b, "Minimum fare:       %s\n", money(receipt.MinimumFare))
	}
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "TOTAL:              %s\n", money(receipt.TotalFare))
	b.WriteString("=====================================\n")

	return b.String()
}

// formatMoney renders an amount with two decimals.
func formatMoney(symbol string, f float64) string {
	return fmt.Sprintf("%s%.2f", symbol, f)
}

// formatDuration renders whole seconds as "1m 05s" or "42s".
func formatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}
