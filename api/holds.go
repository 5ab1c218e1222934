package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type HoldHandler struct {
	service reservation.ReservationUseCase
}

type createHoldRequest struct {
	TripID      int64  `json:"trip_id" binding:"required"`
	SeatNumber  string `json:"seat_number" binding:"required"`
	PassengerID int64  `json:"passenger_id" binding:"required"`
}

type holdResponse struct {
	ID          string `json:"id"`
	TripID      int64  `json:"trip_id"`
	SeatNumber  string `json:"seat_number"`
	PassengerID int64  `json:"passenger_id"`
	Status      string `json:"status"`
	ExpiresAt   string `json:"expires_at"`
	CreatedAt   string `json:"created_at"`
}

func newHoldResponse(h *domain.SeatHold) holdResponse {
	return holdResponse{
		ID:          h.ID,
		TripID:      h.TripID,
		SeatNumber:  h.SeatNumber,
		PassengerID: h.PassengerID,
		Status:      string(h.Status),
		ExpiresAt:   h.ExpiresAt.Format(time.RFC3339),
		CreatedAt:   h.CreatedAt.Format(time.RFC3339),
	}
}

func NewHoldHandler(service reservation.ReservationUseCase) *HoldHandler {
	return &HoldHandler{service: service}
}

func (h *HoldHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/expired", h.listExpired)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.release)
}

// RegisterSeat mounts the per-seat lookup under a trips group.
func (h *HoldHandler) RegisterSeat(router *gin.RouterGroup) {
	router.GET("/:id/seats/:seat/hold", h.activeForSeat)
}

func (h *HoldHandler) create(c *gin.Context) {
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	hold, err := h.service.Hold(c.Request.Context(), reservation.HoldInput{
		TripID:      req.TripID,
		SeatNumber:  req.SeatNumber,
		PassengerID: req.PassengerID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newHoldResponse(hold))
}

func (h *HoldHandler) get(c *gin.Context) {
	hold, err := h.service.GetHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHoldResponse(hold))
}

func (h *HoldHandler) release(c *gin.Context) {
	hold, err := h.service.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHoldResponse(hold))
}

func (h *HoldHandler) listExpired(c *gin.Context) {
	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "at must be an RFC3339 timestamp")
			return
		}
		at = parsed
	}

	holds, err := h.service.ListExpiredHolds(c.Request.Context(), at)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]holdResponse, 0, len(holds))
	for i := range holds {
		resp = append(resp, newHoldResponse(&holds[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HoldHandler) activeForSeat(c *gin.Context) {
	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid trip id")
		return
	}
	seat := c.Param("seat")

	active, err := h.service.ExistsActiveHold(c.Request.Context(), tripID, seat)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "seat_number": seat, "active": active})
}
