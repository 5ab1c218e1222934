package domain

// Segment is the half-open stop-order range [From, To) a passenger rides.
type Segment struct {
	From int
	To   int
}

func (s Segment) Validate() error {
	if s.From >= s.To {
		return Errorf(ErrInvalidSegment, "invalid segment [%d,%d): from stop must come before to stop", s.From, s.To)
	}
	return nil
}

// Overlaps reports whether a and b share at least one stop-order position.
// Touching boundaries ([1,3) and [3,5)) do not overlap; containment does.
func Overlaps(a, b Segment) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	if err := b.Validate(); err != nil {
		return false, err
	}
	return max(a.From, b.From) < min(a.To, b.To), nil
}

// ExistsOverlap reports whether candidate conflicts with any SOLD or USED ticket
// for the given trip and seat. Tickets for other seats or trips are ignored.
func ExistsOverlap(tripID int64, seat string, candidate Segment, active []Ticket) (bool, error) {
	if err := candidate.Validate(); err != nil {
		return false, err
	}
	for _, t := range active {
		if t.TripID != tripID || t.SeatNumber != seat || !t.Status.Occupies() {
			continue
		}
		overlap, err := Overlaps(candidate, t.Segment())
		if err != nil {
			return false, err
		}
		if overlap {
			return true, nil
		}
	}
	return false, nil
}
