package domain

import (
	"fmt"
	"time"
)

type HoldStatus string

const (
	HoldStatusHold     HoldStatus = "HOLD"
	HoldStatusSold     HoldStatus = "SOLD"
	HoldStatusExpired  HoldStatus = "EXPIRED"
	HoldStatusReleased HoldStatus = "RELEASED"
)

// SeatHold is a time-boxed claim on a whole seat for a trip.
type SeatHold struct {
	ID          string
	TripID      int64
	SeatNumber  string
	PassengerID int64
	Status      HoldStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether now is strictly past the hold's expiry, regardless
// of status. At exactly ExpiresAt the hold still blocks its seat.
func (h SeatHold) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// Active reports whether the hold still blocks the seat at now.
func (h SeatHold) Active(now time.Time) bool {
	return h.Status == HoldStatusHold && !h.Expired(now)
}

// TransitionTo applies the hold state machine: HOLD may move to SOLD, EXPIRED
// or RELEASED. Moving to the current status is a no-op and returns false.
func (h *SeatHold) TransitionTo(to HoldStatus, now time.Time) (bool, error) {
	if h.Status == to {
		return false, nil
	}
	if h.Status != HoldStatusHold {
		if to == HoldStatusSold && h.Status == HoldStatusExpired {
			return false, Errorf(ErrHoldExpired, "hold %s expired", h.ID)
		}
		return false, Errorf(ErrInvalidTransition, "hold %s cannot move from %s to %s", h.ID, h.Status, to)
	}

	switch to {
	case HoldStatusSold:
		if h.Expired(now) {
			return false, Errorf(ErrHoldExpired, "hold %s expired at %s", h.ID, h.ExpiresAt.Format(time.RFC3339))
		}
	case HoldStatusExpired:
		if !h.Expired(now) {
			return false, Errorf(ErrInvalidTransition, "hold %s has not expired yet", h.ID)
		}
	case HoldStatusReleased:
	default:
		return false, Errorf(ErrInvalidTransition, "hold %s cannot move from %s to %s", h.ID, h.Status, to)
	}

	h.Status = to
	h.UpdatedAt = now
	return true, nil
}

// SeatRef identifies one seat on one trip; it is the unit of serialization.
func SeatRef(tripID int64, seat string) string {
	return fmt.Sprintf("trip:%d:seat:%s", tripID, seat)
}
