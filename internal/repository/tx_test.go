package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGTransactor_LockSeatTxNeedsTransaction(t *testing.T) {
	tx := NewTransactor(&pgxpool.Pool{})
	assert.ErrorIs(t, tx.LockSeatTx(context.Background(), 1, "A12"), ErrNoTransaction)
	assert.NoError(t, NoopTransactor{}.LockSeatTx(context.Background(), 1, "A12"))
}

func TestPGTransactor_LockSeatTxHeldUntilCommit(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	f := testutil.InsertFixture(t, ctx, pool, 3, 1, string(domain.TripStatusScheduled))
	tx := NewTransactor(pool)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- tx.WithTx(ctx, func(ctx context.Context) error {
			if err := tx.LockSeatTx(ctx, f.TripID, "A12"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	err := tx.WithTx(ctx, func(ctx context.Context) error {
		short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		return tx.LockSeatTx(short, f.TripID, "A12")
	})
	assert.Error(t, err, "another transaction holds the seat")

	require.NoError(t, tx.WithTx(ctx, func(ctx context.Context) error {
		return tx.LockSeatTx(ctx, f.TripID, "A13")
	}), "other seats are independent")

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, tx.WithTx(ctx, func(ctx context.Context) error {
		return tx.LockSeatTx(ctx, f.TripID, "A12")
	}))
}
