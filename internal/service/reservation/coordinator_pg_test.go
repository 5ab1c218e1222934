package reservation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/lock"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/Domenick1991/busbooking/internal/testutil"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_Postgres_ConcurrentSells(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	const n = 10
	f := testutil.InsertFixture(t, ctx, pool, 5, n, string(domain.TripStatusScheduled))

	coord := NewCoordinator(
		repository.NewTripRepository(pool),
		repository.NewPassengerRepository(pool),
		repository.NewSeatHoldStore(pool),
		repository.NewTicketLedger(pool),
		lock.NewKeyedMutex(),
		WithTransactor(repository.NewTransactor(pool)),
		WithLogger(log.NewStdLogger(io.Discard)),
	)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Sell(ctx, SellInput{
				TripID: f.TripID, SeatNumber: "A12", PassengerID: f.Passengers[i],
				FromStopID: f.StopIDs[0], ToStopID: f.StopIDs[3], Price: 100,
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	active, err := repository.NewTicketLedger(pool).ListActive(ctx, f.TripID, "A12")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCoordinator_Postgres_HoldThenSell(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	f := testutil.InsertFixture(t, ctx, pool, 5, 3, string(domain.TripStatusScheduled))

	coord := NewCoordinator(
		repository.NewTripRepository(pool),
		repository.NewPassengerRepository(pool),
		repository.NewSeatHoldStore(pool),
		repository.NewTicketLedger(pool),
		lock.NewKeyedMutex(),
		WithTransactor(repository.NewTransactor(pool)),
		WithHoldTTL(10*time.Minute),
		WithLogger(log.NewStdLogger(io.Discard)),
	)

	hold, err := coord.Hold(ctx, HoldInput{TripID: f.TripID, SeatNumber: "A12", PassengerID: f.Passengers[0]})
	require.NoError(t, err)

	_, err = coord.Sell(ctx, SellInput{TripID: f.TripID, SeatNumber: "A12", PassengerID: f.Passengers[1],
		FromStopID: f.StopIDs[1], ToStopID: f.StopIDs[3], Price: 45000})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	ticket, err := coord.Sell(ctx, SellInput{TripID: f.TripID, SeatNumber: "A12", PassengerID: f.Passengers[0],
		FromStopID: f.StopIDs[0], ToStopID: f.StopIDs[2], Price: 30000})
	require.NoError(t, err)
	assert.Equal(t, hold.ID, ticket.HoldID)

	consumed, err := coord.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusSold, consumed.Status)

	_, err = coord.Sell(ctx, SellInput{TripID: f.TripID, SeatNumber: "A12", PassengerID: f.Passengers[2],
		FromStopID: f.StopIDs[2], ToStopID: f.StopIDs[4], Price: 40000})
	require.NoError(t, err)
}

func TestCoordinator_Postgres_ReplicasSerializeOnTheDatabase(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	const n = 8
	f := testutil.InsertFixture(t, ctx, pool, 5, n, string(domain.TripStatusScheduled))

	// Every replica has its own process lock, so only the database can keep
	// them apart.
	replica := func() *Coordinator {
		return NewCoordinator(
			repository.NewTripRepository(pool),
			repository.NewPassengerRepository(pool),
			repository.NewSeatHoldStore(pool),
			repository.NewTicketLedger(pool),
			lock.NewKeyedMutex(),
			WithTransactor(repository.NewTransactor(pool)),
			WithLogger(log.NewStdLogger(io.Discard)),
		)
	}

	var wg sync.WaitGroup
	sellErrs := make([]error, n)
	holdErrs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, sellErrs[i] = replica().Sell(ctx, SellInput{
				TripID: f.TripID, SeatNumber: "A12", PassengerID: f.Passengers[i],
				FromStopID: f.StopIDs[0], ToStopID: f.StopIDs[3], Price: 100,
			})
		}(i)
		go func(i int) {
			defer wg.Done()
			_, holdErrs[i] = replica().Hold(ctx, HoldInput{TripID: f.TripID, SeatNumber: "B3", PassengerID: f.Passengers[i]})
		}(i)
	}
	wg.Wait()

	for name, errs := range map[string][]error{"sell": sellErrs, "hold": holdErrs} {
		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "%s: unexpected error: %v", name, err)
		}
		assert.Equal(t, 1, ok, name)
	}

	active, err := repository.NewTicketLedger(pool).ListActive(ctx, f.TripID, "A12")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
