package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taximeter/internal/service"
)

// FareHandler handles fare quotes.
type FareHandler struct {
	meterService *service.MeterService
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(meterService *service.MeterService) *FareHandler {
	return &FareHandler{meterService: meterService}
}

// QuoteResponse is the HTTP response for a fare quote.
type QuoteResponse struct {
	StoppedSeconds float64 `json:"stopped_seconds"`
	MovingSeconds  float64 `json:"moving_seconds"`
	Fare           float64 `json:"fare"`
	FareDisplay    string  `json:"fare_display"`
}

// RatesResponse describes the pricing model.
type RatesResponse struct {
	StoppedRate float64 `json:"stopped_rate"`
	MovingRate  float64 `json:"moving_rate"`
	MinimumFare float64 `json:"minimum_fare"`
	Currency    string  `json:"currency"`
}

// Quote handles GET /v1/fare?stopped_seconds=&moving_seconds=
func (h *FareHandler) Quote(c *gin.Context) {
	stopped, err := parseSeconds(c.Query("stopped_seconds"))
	if err != nil {
		respondError(c, err)
		return
	}
	moving, err := parseSeconds(c.Query("moving_seconds"))
	if err != nil {
		respondError(c, err)
		return
	}

	fare, err := h.meterService.QuoteFare(c.Request.Context(), stopped, moving)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		StoppedSeconds: stopped,
		MovingSeconds:  moving,
		Fare:           fare,
		FareDisplay:    h.meterService.FormatFare(fare),
	})
}

// Rates handles GET /v1/fare/rates
func (h *FareHandler) Rates(c *gin.Context) {
	rates := h.meterService.Rates()
	respondJSON(c, http.StatusOK, RatesResponse{
		StoppedRate: rates.StoppedPerSecond,
		MovingRate:  rates.MovingPerSecond,
		MinimumFare: rates.MinimumFare,
		Currency:    h.meterService.CurrencySymbol(),
	})
}

// parseSeconds parses an optional seconds parameter; empty means zero.
func parseSeconds(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", service.ErrInvalidDuration, raw)
	}
	return v, nil
}
