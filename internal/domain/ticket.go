package domain

import "time"

type TicketStatus string

const (
	TicketStatusSold      TicketStatus = "SOLD"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusNoShow    TicketStatus = "NO_SHOW"
)

// Occupies reports whether a ticket in this status still owns its segment.
func (s TicketStatus) Occupies() bool {
	return s == TicketStatusSold || s == TicketStatusUsed
}

type Ticket struct {
	ID            string
	TripID        int64
	PassengerID   int64
	SeatNumber    string
	FromStopOrder int
	ToStopOrder   int
	Price         int64
	Status        TicketStatus
	QRCode        string
	HoldID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (t Ticket) Segment() Segment {
	return Segment{From: t.FromStopOrder, To: t.ToStopOrder}
}

// TransitionTo moves a sold ticket to USED, CANCELLED or NO_SHOW. It returns
// false when the ticket is already in the target status.
func (t *Ticket) TransitionTo(to TicketStatus, now time.Time) (bool, error) {
	if t.Status == to {
		return false, nil
	}
	if t.Status != TicketStatusSold {
		return false, Errorf(ErrInvalidTransition, "ticket %s cannot move from %s to %s", t.ID, t.Status, to)
	}
	switch to {
	case TicketStatusUsed, TicketStatusCancelled, TicketStatusNoShow:
	default:
		return false, Errorf(ErrInvalidTransition, "ticket %s cannot move from %s to %s", t.ID, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = now
	return true, nil
}
