// Package lock provides the per-(trip, seat) serialization point used by the
// reservation coordinator when state lives in a single process.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/Domenick1991/busbooking/internal/domain"
)

// SeatKey is the lock key for one seat on one trip.
func SeatKey(tripID int64, seat string) string {
	return domain.SeatRef(tripID, seat)
}

// KeyedMutex hands out one mutex per key. Entries are reference counted and
// removed once nobody holds or waits on them, so the map only grows with the
// number of seats currently contended.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned unlock func is
// safe to call more than once.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.drop(key, e)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.drop(key, e)
		})
	}, nil
}

// LockSeat satisfies the coordinator's SeatLocker.
func (m *KeyedMutex) LockSeat(ctx context.Context, tripID int64, seat string) (func(), error) {
	return m.Lock(ctx, SeatKey(tripID, seat))
}

func (m *KeyedMutex) drop(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
