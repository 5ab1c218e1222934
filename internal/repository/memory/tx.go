package memory

import (
	"context"

	"github.com/Domenick1991/busbooking/internal/lock"
	"github.com/Domenick1991/busbooking/internal/repository"
)

// Transactor scopes seat locks to a unit of work the way Postgres scopes
// advisory transaction locks: every lock taken inside WithTx is held until fn
// returns. Share one Transactor between every coordinator that shares the
// stores. Writes are not rolled back.
type Transactor struct {
	locks *lock.KeyedMutex
}

func NewTransactor() *Transactor {
	return &Transactor{locks: lock.NewKeyedMutex()}
}

type unitKey struct{}

type unit struct {
	held    map[string]bool
	unlocks []func()
}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(unitKey{}).(*unit); ok {
		return fn(ctx)
	}

	u := &unit{held: make(map[string]bool)}
	defer func() {
		for i := len(u.unlocks) - 1; i >= 0; i-- {
			u.unlocks[i]()
		}
	}()
	return fn(context.WithValue(ctx, unitKey{}, u))
}

// LockSeatTx is reentrant within one unit of work.
func (t *Transactor) LockSeatTx(ctx context.Context, tripID int64, seat string) error {
	u, ok := ctx.Value(unitKey{}).(*unit)
	if !ok {
		return repository.ErrNoTransaction
	}
	key := lock.SeatKey(tripID, seat)
	if u.held[key] {
		return nil
	}
	unlock, err := t.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	u.held[key] = true
	u.unlocks = append(u.unlocks, unlock)
	return nil
}

var _ repository.Transactor = (*Transactor)(nil)
