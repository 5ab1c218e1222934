// Package notify turns reservation events into passenger-facing messages.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/go-kratos/kratos/v2/log"
)

// Sender delivers notifications. The only channel today is the service log.
type Sender struct {
	log *log.Helper
}

func NewSender(logger log.Logger) *Sender {
	return &Sender{log: log.NewHelper(log.With(logger, "module", "notify"))}
}

func (s *Sender) Send(_ context.Context, event kafka.ReservationEvent) error {
	msg, ok := Message(event)
	if !ok {
		s.log.Debugf("no notification for %s", event.Type)
		return nil
	}
	s.log.Infow("msg", msg, "passenger_id", event.PassengerID, "event", event.Type, "seat", event.Key())
	return nil
}

// Message renders the text a passenger receives for event. ok is false for
// event types that do not notify anyone.
func Message(event kafka.ReservationEvent) (string, bool) {
	switch event.Type {
	case kafka.EventHoldCreated:
		return fmt.Sprintf("Seat %s on trip %d is held for you until %s",
			event.SeatNumber, event.TripID, event.ExpiresAt.UTC().Format(time.RFC3339)), true
	case kafka.EventHoldExpired:
		return fmt.Sprintf("Your hold on seat %s for trip %d has expired", event.SeatNumber, event.TripID), true
	case kafka.EventHoldReleased:
		return fmt.Sprintf("Your hold on seat %s for trip %d was released", event.SeatNumber, event.TripID), true
	case kafka.EventTicketSold:
		return fmt.Sprintf("Ticket %s: seat %s on trip %d, stops %d to %d, code %s",
			event.TicketID, event.SeatNumber, event.TripID, event.FromStopOrder, event.ToStopOrder, event.QRCode), true
	default:
		return "", false
	}
}
