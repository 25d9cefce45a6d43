package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taximeter/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Warning bool   `json:"warning,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondWarning sends an advisory: the request was understood but had no effect.
func respondWarning(c *gin.Context, err error, message string) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: message, Warning: true})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, service.ErrNoReceipt):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrNoActiveTrip),
		errors.Is(err, service.ErrTripAlreadyActive):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
