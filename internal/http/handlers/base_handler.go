// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnex/internal/http/middleware"
	"cabnex/internal/modules/booking"
	"cabnex/internal/modules/pricing"
	"cabnex/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeQuoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidLocation):
		writeError(c, http.StatusBadRequest, "Invalid pickup location")
	case errors.Is(err, pricing.ErrRouteUnavailable):
		writeError(c, http.StatusBadRequest, "Error fetching distance data")
	case errors.Is(err, pricing.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pricing.ErrNotFound):
		writeError(c, http.StatusNotFound, "Selected rental package not found")
	default:
		log.Printf("quote: request_id=%s err=%v", middleware.GetRequestID(c), err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, booking.ErrInvalidSignature):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		log.Printf("booking: request_id=%s err=%v", middleware.GetRequestID(c), err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func major(amount int64) float64 {
	return types.Money{Amount: amount}.Major()
}
