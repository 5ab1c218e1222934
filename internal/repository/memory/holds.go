// Package memory holds process-local implementations of the reservation
// stores. They do not serialize callers; the coordinator's seat lock does.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/google/uuid"
)

type SeatHoldStore struct {
	mu    sync.RWMutex
	holds map[string]domain.SeatHold
}

func NewSeatHoldStore() *SeatHoldStore {
	return &SeatHoldStore{holds: make(map[string]domain.SeatHold)}
}

func (s *SeatHoldStore) Create(_ context.Context, tripID int64, seat string, passengerID int64, now time.Time, ttl time.Duration) (*domain.SeatHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.holds {
		if h.TripID != tripID || h.SeatNumber != seat {
			continue
		}
		if h.Status == domain.HoldStatusSold {
			return nil, domain.ErrSeatSold
		}
		if h.Active(now) {
			return nil, domain.ErrSeatHeld
		}
	}

	h := domain.SeatHold{
		ID:          uuid.NewString(),
		TripID:      tripID,
		SeatNumber:  seat,
		PassengerID: passengerID,
		Status:      domain.HoldStatusHold,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.holds[h.ID] = h
	return &h, nil
}

func (s *SeatHoldStore) Get(_ context.Context, id string) (*domain.SeatHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holds[id]
	if !ok {
		return nil, domain.NotFound("Hold")
	}
	return &h, nil
}

func (s *SeatHoldStore) FindActive(_ context.Context, tripID int64, seat string, now time.Time) (*domain.SeatHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.SeatHold
	for _, h := range s.holds {
		if h.TripID != tripID || h.SeatNumber != seat || !h.Active(now) {
			continue
		}
		if found == nil || h.CreatedAt.After(found.CreatedAt) {
			h := h
			found = &h
		}
	}
	return found, nil
}

func (s *SeatHoldStore) Transition(_ context.Context, id string, to domain.HoldStatus, now time.Time) (*domain.SeatHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[id]
	if !ok {
		return nil, domain.NotFound("Hold")
	}
	changed, err := h.TransitionTo(to, now)
	if err != nil {
		return nil, err
	}
	if changed {
		s.holds[id] = h
	}
	return &h, nil
}

func (s *SeatHoldStore) ListExpired(_ context.Context, now time.Time) ([]domain.SeatHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expired := make([]domain.SeatHold, 0)
	for _, h := range s.holds {
		if h.Status == domain.HoldStatusHold && h.Expired(now) {
			expired = append(expired, h)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	return expired, nil
}

var _ repository.SeatHoldStore = (*SeatHoldStore)(nil)
