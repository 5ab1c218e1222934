package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketHandler_sell(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewTicketHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	input := reservation.SellInput{TripID: 1, SeatNumber: "A12", PassengerID: 7, FromStopID: 101, ToStopID: 103, Price: 45000}
	body, _ := json.Marshal(input)
	c.Request = httptest.NewRequest("POST", "/api/v1/tickets", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	ticket := &domain.Ticket{
		ID: "t-1", TripID: 1, PassengerID: 7, SeatNumber: "A12", FromStopOrder: 1, ToStopOrder: 3,
		Price: 45000, Status: domain.TicketStatusSold, QRCode: "ABC123", HoldID: "h-1",
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	mockService.On("Sell", c.Request.Context(), input).Return(ticket, nil)

	handler.sell(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response ticketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "t-1", response.ID)
	assert.Equal(t, "ABC123", response.QRCode)
	assert.Equal(t, 1, response.FromStopOrder)
	assert.Equal(t, 3, response.ToStopOrder)
	assert.Equal(t, "h-1", response.HoldID)
	mockService.AssertExpectations(t)
}

func TestTicketHandler_sell_Conflict(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewTicketHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := []byte(`{"trip_id":1,"seat_number":"A12","passenger_id":2,"from_stop_id":102,"to_stop_id":104,"price":45000}`)
	c.Request = httptest.NewRequest("POST", "/api/v1/tickets", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Sell", c.Request.Context(), reservation.SellInput{
		TripID: 1, SeatNumber: "A12", PassengerID: 2, FromStopID: 102, ToStopID: 104, Price: 45000,
	}).Return(nil, domain.AlreadyExists("The seat A12 is hold by another passenger"))

	handler.sell(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":"already_exists","error":"The seat A12 is hold by another passenger"}`, w.Body.String())
}

func TestTicketHandler_sell_Exhausted(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewTicketHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := []byte(`{"trip_id":1,"seat_number":"A12","passenger_id":2,"from_stop_id":102,"to_stop_id":104}`)
	c.Request = httptest.NewRequest("POST", "/api/v1/tickets", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Sell", c.Request.Context(), reservation.SellInput{
		TripID: 1, SeatNumber: "A12", PassengerID: 2, FromStopID: 102, ToStopID: 104,
	}).Return(nil, domain.Errorf(domain.ErrCodeGenerationExhausted, "could not generate a unique ticket code after 5 attempts"))

	handler.sell(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTicketHandler_get(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewTicketHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	c.Request = httptest.NewRequest("GET", "/api/v1/tickets/t-1", nil)

	mockService.On("GetTicket", c.Request.Context(), "t-1").Return(&domain.Ticket{ID: "t-1", Status: domain.TicketStatusUsed}, nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response ticketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "USED", response.Status)
}
