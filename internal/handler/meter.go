package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// MeterHandler handles HTTP requests for the taximeter.
type MeterHandler struct {
	meterService *service.MeterService
}

// NewMeterHandler creates a new MeterHandler.
func NewMeterHandler(meterService *service.MeterService) *MeterHandler {
	return &MeterHandler{meterService: meterService}
}

// MeterResponse is the live view of the meter.
type MeterResponse struct {
	TripID         string       `json:"trip_id,omitempty"`
	State          string       `json:"state"`
	Status         string       `json:"status"`
	Active         bool         `json:"active"`
	StoppedSeconds float64      `json:"stopped_seconds"`
	MovingSeconds  float64      `json:"moving_seconds"`
	Fare           float64      `json:"fare"`
	FareDisplay    string       `json:"fare_display"`
	Controls       ControlsInfo `json:"controls"`
}

// ControlsInfo tells clients which actions to enable.
type ControlsInfo struct {
	Start  bool `json:"start"`
	Move   bool `json:"move"`
	Stop   bool `json:"stop"`
	Finish bool `json:"finish"`
}

// TripInfo contains trip boundaries in the response.
type TripInfo struct {
	ID        string  `json:"id"`
	StartedAt string  `json:"started_at,omitempty"`
	EndedAt   string  `json:"ended_at,omitempty"`
	Fare      float64 `json:"fare"`
}

// ReceiptInfo contains receipt details in the response.
type ReceiptInfo struct {
	ID             string  `json:"id"`
	TripID         string  `json:"trip_id"`
	StoppedSeconds float64 `json:"stopped_seconds"`
	MovingSeconds  float64 `json:"moving_seconds"`
	StoppedRate    float64 `json:"stopped_rate"`
	MovingRate     float64 `json:"moving_rate"`
	StoppedCharge  float64 `json:"stopped_charge"`
	MovingCharge   float64 `json:"moving_charge"`
	Subtotal       float64 `json:"subtotal"`
	MinimumFare    float64 `json:"minimum_fare"`
	MinimumApplied bool    `json:"minimum_applied"`
	TotalFare      float64 `json:"total_fare"`
	Currency       string  `json:"currency"`
	StartedAt      string  `json:"started_at,omitempty"`
	EndedAt        string  `json:"ended_at"`
}

// StartTripResponse is the HTTP response for starting a trip.
type StartTripResponse struct {
	Trip  *TripInfo     `json:"trip,omitempty"`
	Meter MeterResponse `json:"meter"`
}

// FinishTripResponse is the HTTP response for finishing a trip.
type FinishTripResponse struct {
	Message     string        `json:"message"`
	Fare        float64       `json:"fare"`
	FareDisplay string        `json:"fare_display"`
	Trip        TripInfo      `json:"trip"`
	Receipt     *ReceiptInfo  `json:"receipt,omitempty"`
	Meter       MeterResponse `json:"meter"`
}

// GetMeter handles GET /v1/meter
func (h *MeterHandler) GetMeter(c *gin.Context) {
	snapshot := h.meterService.Snapshot(c.Request.Context())
	respondJSON(c, http.StatusOK, h.toMeterResponse(snapshot))
}

// StartTrip handles POST /v1/meter/start
func (h *MeterHandler) StartTrip(c *gin.Context) {
	ctx := c.Request.Context()

	trip, err := h.meterService.StartTrip(ctx)
	if err != nil && !errors.Is(err, service.ErrTripAlreadyActive) {
		respondError(c, err)
		return
	}

	// Starting while a trip runs is a silent no-op: report the running trip.
	response := StartTripResponse{
		Meter: h.toMeterResponse(h.meterService.Snapshot(ctx)),
	}
	if trip != nil {
		response.Trip = toTripInfo(trip)
	}

	respondJSON(c, http.StatusOK, response)
}

// SetMoving handles POST /v1/meter/move
func (h *MeterHandler) SetMoving(c *gin.Context) {
	h.transition(c, domain.MeterStateMoving)
}

// SetStopped handles POST /v1/meter/stop
func (h *MeterHandler) SetStopped(c *gin.Context) {
	h.transition(c, domain.MeterStateStopped)
}

func (h *MeterHandler) transition(c *gin.Context, state domain.MeterState) {
	snapshot, err := h.meterService.SetState(c.Request.Context(), state)
	// Without a trip the transition is ignored; the view shows that.
	if err != nil && !errors.Is(err, service.ErrNoActiveTrip) {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.toMeterResponse(snapshot))
}

// FinishTrip handles POST /v1/meter/finish
func (h *MeterHandler) FinishTrip(c *gin.Context) {
	result, err := h.meterService.FinishTrip(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTrip) {
			respondWarning(c, err, service.NoActiveTripMessage)
			return
		}
		respondError(c, err)
		return
	}

	response := FinishTripResponse{
		Message:     result.Message,
		Fare:        result.Trip.Fare,
		FareDisplay: h.meterService.FormatFare(result.Trip.Fare),
		Trip:        *toTripInfo(result.Trip),
		Meter:       h.toMeterResponse(h.meterService.Snapshot(c.Request.Context())),
	}
	if result.Receipt != nil {
		response.Receipt = toReceiptInfo(result.Receipt)
	}

	respondJSON(c, http.StatusOK, response)
}

// GetReceipt handles GET /v1/meter/receipt
func (h *MeterHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.meterService.LastReceipt(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.meterService.FormatReceipt(receipt))
		return
	}

	respondJSON(c, http.StatusOK, toReceiptInfo(receipt))
}

func (h *MeterHandler) toMeterResponse(s domain.Snapshot) MeterResponse {
	status := "INACTIVE"
	if s.Active {
		status = "ACTIVE TRIP"
	}

	return MeterResponse{
		TripID:         s.TripID,
		State:          string(s.State),
		Status:         status,
		Active:         s.Active,
		StoppedSeconds: s.Stopped.Seconds(),
		MovingSeconds:  s.Moving.Seconds(),
		Fare:           s.Fare,
		FareDisplay:    h.meterService.FormatFare(s.Fare),
		Controls: ControlsInfo{
			Start:  s.Controls.CanStart,
			Move:   s.Controls.CanMove,
			Stop:   s.Controls.CanStop,
			Finish: s.Controls.CanFinish,
		},
	}
}

func toTripInfo(trip *domain.Trip) *TripInfo {
	info := &TripInfo{
		ID:   trip.ID,
		Fare: trip.Fare,
	}
	if !trip.StartedAt.IsZero() {
		info.StartedAt = trip.StartedAt.Format(timeLayout)
	}
	if !trip.EndedAt.IsZero() {
		info.EndedAt = trip.EndedAt.Format(timeLayout)
	}
	return info
}

func toReceiptInfo(r *domain.Receipt) *ReceiptInfo {
	info := &ReceiptInfo{
		ID:             r.ID,
		TripID:         r.TripID,
		StoppedSeconds: r.StoppedDuration.Seconds(),
		MovingSeconds:  r.MovingDuration.Seconds(),
		StoppedRate:    r.StoppedRate,
		MovingRate:     r.MovingRate,
		StoppedCharge:  r.StoppedCharge,
		MovingCharge:   r.MovingCharge,
		Subtotal:       r.Subtotal,
		MinimumFare:    r.MinimumFare,
		MinimumApplied: r.MinimumApplied,
		TotalFare:      r.TotalFare,
		Currency:       r.CurrencySymbol,
		EndedAt:        formatTime(r.EndedAt),
	}
	if !r.StartedAt.IsZero() {
		info.StartedAt = formatTime(r.StartedAt)
	}
	return info
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}
