package domain

import "time"

type TripStatus string

const (
	TripStatusScheduled TripStatus = "SCHEDULED"
	TripStatusBoarding  TripStatus = "BOARDING"
	TripStatusDeparted  TripStatus = "DEPARTED"
	TripStatusArrived   TripStatus = "ARRIVED"
	TripStatusCancelled TripStatus = "CANCELLED"
)

type Trip struct {
	ID          int64
	RouteID     int64
	DepartureAt time.Time
	ArrivalETA  time.Time
	Status      TripStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bookable reports whether new holds and sales may still be taken for the trip.
func (t Trip) Bookable() bool {
	switch t.Status {
	case TripStatusDeparted, TripStatusArrived, TripStatusCancelled:
		return false
	default:
		return true
	}
}

type Stop struct {
	ID      int64
	RouteID int64
	Name    string
	Order   int
}
