package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var errorStatuses = []struct {
	kind   error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{domain.ErrInvalidSegment, http.StatusBadRequest, "invalid_segment"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrSeatUnavailable, http.StatusConflict, "already_exists"},
	{domain.ErrTripNotBookable, http.StatusUnprocessableEntity, "trip_not_bookable"},
	{domain.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{domain.ErrHoldExpired, http.StatusUnprocessableEntity, "hold_expired"},
	{domain.ErrCodeGenerationExhausted, http.StatusServiceUnavailable, "code_generation_exhausted"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "seat_busy"},
}

// writeError maps reservation outcomes to status codes. Anything unknown is an
// internal failure and its message is not exposed.
func writeError(c *gin.Context, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.kind) {
			c.JSON(e.status, errorResponse{Code: e.code, Error: err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorResponse{Code: "internal", Error: "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_argument", Error: msg})
}
