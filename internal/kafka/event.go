package kafka

import (
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
)

const (
	EventHoldCreated  = "hold_created"
	EventHoldReleased = "hold_released"
	EventHoldExpired  = "hold_expired"
	EventTicketSold   = "ticket_sold"
)

type ReservationEvent struct {
	Type          string    `json:"type"`
	TripID        int64     `json:"trip_id"`
	SeatNumber    string    `json:"seat_number"`
	PassengerID   int64     `json:"passenger_id"`
	HoldID        string    `json:"hold_id,omitempty"`
	TicketID      string    `json:"ticket_id,omitempty"`
	Status        string    `json:"status"`
	FromStopOrder int       `json:"from_stop_order,omitempty"`
	ToStopOrder   int       `json:"to_stop_order,omitempty"`
	Price         int64     `json:"price,omitempty"`
	QRCode        string    `json:"qr_code,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Key partitions events by seat so consumers see one seat's history in order.
func (e ReservationEvent) Key() string {
	return domain.SeatRef(e.TripID, e.SeatNumber)
}

func HoldEvent(eventType string, h *domain.SeatHold, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:        eventType,
		TripID:      h.TripID,
		SeatNumber:  h.SeatNumber,
		PassengerID: h.PassengerID,
		HoldID:      h.ID,
		Status:      string(h.Status),
		ExpiresAt:   h.ExpiresAt,
		OccurredAt:  at,
	}
}

func TicketEvent(t *domain.Ticket) ReservationEvent {
	return ReservationEvent{
		Type:          EventTicketSold,
		TripID:        t.TripID,
		SeatNumber:    t.SeatNumber,
		PassengerID:   t.PassengerID,
		HoldID:        t.HoldID,
		TicketID:      t.ID,
		Status:        string(t.Status),
		FromStopOrder: t.FromStopOrder,
		ToStopOrder:   t.ToStopOrder,
		Price:         t.Price,
		QRCode:        t.QRCode,
		OccurredAt:    t.CreatedAt,
	}
}
