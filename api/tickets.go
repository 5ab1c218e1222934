package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	service reservation.ReservationUseCase
}

type sellTicketRequest struct {
	TripID      int64  `json:"trip_id" binding:"required"`
	SeatNumber  string `json:"seat_number" binding:"required"`
	PassengerID int64  `json:"passenger_id" binding:"required"`
	FromStopID  int64  `json:"from_stop_id" binding:"required"`
	ToStopID    int64  `json:"to_stop_id" binding:"required"`
	Price       int64  `json:"price"`
}

type ticketResponse struct {
	ID            string `json:"id"`
	TripID        int64  `json:"trip_id"`
	PassengerID   int64  `json:"passenger_id"`
	SeatNumber    string `json:"seat_number"`
	FromStopOrder int    `json:"from_stop_order"`
	ToStopOrder   int    `json:"to_stop_order"`
	Price         int64  `json:"price"`
	Status        string `json:"status"`
	QRCode        string `json:"qr_code"`
	HoldID        string `json:"hold_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func newTicketResponse(t *domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:            t.ID,
		TripID:        t.TripID,
		PassengerID:   t.PassengerID,
		SeatNumber:    t.SeatNumber,
		FromStopOrder: t.FromStopOrder,
		ToStopOrder:   t.ToStopOrder,
		Price:         t.Price,
		Status:        string(t.Status),
		QRCode:        t.QRCode,
		HoldID:        t.HoldID,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}

func NewTicketHandler(service reservation.ReservationUseCase) *TicketHandler {
	return &TicketHandler{service: service}
}

func (h *TicketHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.sell)
	router.GET("/:id", h.get)
}

func (h *TicketHandler) sell(c *gin.Context) {
	var req sellTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ticket, err := h.service.Sell(c.Request.Context(), reservation.SellInput{
		TripID:      req.TripID,
		SeatNumber:  req.SeatNumber,
		PassengerID: req.PassengerID,
		FromStopID:  req.FromStopID,
		ToStopID:    req.ToStopID,
		Price:       req.Price,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTicketResponse(ticket))
}

func (h *TicketHandler) get(c *gin.Context) {
	ticket, err := h.service.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTicketResponse(ticket))
}
