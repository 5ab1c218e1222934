package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/trips"
	"github.com/gin-gonic/gin"
)

type TripHandler struct {
	service trips.TripUseCase
}

type tripResponse struct {
	ID          int64  `json:"id"`
	RouteID     int64  `json:"route_id"`
	DepartureAt string `json:"departure_at"`
	ArrivalETA  string `json:"arrival_eta"`
	Status      string `json:"status"`
	Bookable    bool   `json:"bookable"`
}

func newTripResponse(t *domain.Trip) tripResponse {
	return tripResponse{
		ID:          t.ID,
		RouteID:     t.RouteID,
		DepartureAt: t.DepartureAt.Format(time.RFC3339),
		ArrivalETA:  t.ArrivalETA.Format(time.RFC3339),
		Status:      string(t.Status),
		Bookable:    t.Bookable(),
	}
}

func NewTripHandler(service trips.TripUseCase) *TripHandler {
	return &TripHandler{service: service}
}

func (h *TripHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
}

func (h *TripHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]tripResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newTripResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TripHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	trip, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripResponse(trip))
}
