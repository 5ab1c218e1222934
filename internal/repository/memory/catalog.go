package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/repository"
)

// Catalog is a fixed set of trips, stops and passengers.
type Catalog struct {
	mu         sync.RWMutex
	trips      map[int64]domain.Trip
	stops      map[int64]domain.Stop
	passengers map[int64]struct{}
}

func NewCatalog() *Catalog {
	return &Catalog{
		trips:      make(map[int64]domain.Trip),
		stops:      make(map[int64]domain.Stop),
		passengers: make(map[int64]struct{}),
	}
}

func (c *Catalog) PutTrip(t domain.Trip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trips[t.ID] = t
}

func (c *Catalog) PutStop(s domain.Stop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops[s.ID] = s
}

func (c *Catalog) PutPassenger(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passengers[id] = struct{}{}
}

func (c *Catalog) List(_ context.Context) ([]domain.Trip, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	trips := make([]domain.Trip, 0, len(c.trips))
	for _, t := range c.trips {
		trips = append(trips, t)
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].DepartureAt.Before(trips[j].DepartureAt) })
	return trips, nil
}

func (c *Catalog) GetByID(_ context.Context, id int64) (*domain.Trip, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.trips[id]
	if !ok {
		return nil, domain.NotFound("Trip")
	}
	return &t, nil
}

func (c *Catalog) GetStop(_ context.Context, id int64) (*domain.Stop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.stops[id]
	if !ok {
		return nil, domain.NotFound("Stop")
	}
	return &s, nil
}

func (c *Catalog) Exists(_ context.Context, id int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.passengers[id]
	return ok, nil
}

var (
	_ repository.TripRepository      = (*Catalog)(nil)
	_ repository.PassengerRepository = (*Catalog)(nil)
)
