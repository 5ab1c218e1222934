package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeatHoldStore persists seat holds. It is the only mutation path for hold
// status; callers serialize per (trip, seat) before using it.
type SeatHoldStore interface {
	Create(ctx context.Context, tripID int64, seat string, passengerID int64, now time.Time, ttl time.Duration) (*domain.SeatHold, error)
	Get(ctx context.Context, id string) (*domain.SeatHold, error)
	FindActive(ctx context.Context, tripID int64, seat string, now time.Time) (*domain.SeatHold, error)
	Transition(ctx context.Context, id string, to domain.HoldStatus, now time.Time) (*domain.SeatHold, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.SeatHold, error)
}

type PGSeatHoldStore struct {
	db *pgxpool.Pool
}

func NewSeatHoldStore(db *pgxpool.Pool) SeatHoldStore {
	return &PGSeatHoldStore{db: db}
}

const holdColumns = `id, trip_id, seat_number, passenger_id, status, expires_at, created_at, updated_at`

func (r *PGSeatHoldStore) Create(ctx context.Context, tripID int64, seat string, passengerID int64, now time.Time, ttl time.Duration) (*domain.SeatHold, error) {
	hold := &domain.SeatHold{
		ID:          uuid.NewString(),
		TripID:      tripID,
		SeatNumber:  seat,
		PassengerID: passengerID,
		Status:      domain.HoldStatusHold,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)

		var blocking domain.HoldStatus
		err := q.QueryRow(ctx, `
SELECT status FROM seat_holds
WHERE trip_id = $1 AND seat_number = $2
  AND (status = 'SOLD' OR (status = 'HOLD' AND expires_at >= $3))
ORDER BY status = 'SOLD' DESC
LIMIT 1`, tripID, seat, now).Scan(&blocking)
		switch {
		case err == nil && blocking == domain.HoldStatusSold:
			return domain.ErrSeatSold
		case err == nil:
			return domain.ErrSeatHeld
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check seat holds: %w", err)
		}

		if _, err := q.Exec(ctx, `
INSERT INTO seat_holds (`+holdColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			hold.ID, hold.TripID, hold.SeatNumber, hold.PassengerID, hold.Status, hold.ExpiresAt, hold.CreatedAt, hold.UpdatedAt); err != nil {
			return fmt.Errorf("create hold: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (r *PGSeatHoldStore) Get(ctx context.Context, id string) (*domain.SeatHold, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+holdColumns+` FROM seat_holds WHERE id = $1`, id)
	h, err := scanHold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("Hold")
		}
		return nil, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

func (r *PGSeatHoldStore) FindActive(ctx context.Context, tripID int64, seat string, now time.Time) (*domain.SeatHold, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
SELECT `+holdColumns+` FROM seat_holds
WHERE trip_id = $1 AND seat_number = $2 AND status = 'HOLD' AND expires_at >= $3
ORDER BY created_at DESC
LIMIT 1`, tripID, seat, now)
	h, err := scanHold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active hold: %w", err)
	}
	return h, nil
}

func (r *PGSeatHoldStore) Transition(ctx context.Context, id string, to domain.HoldStatus, now time.Time) (*domain.SeatHold, error) {
	var result *domain.SeatHold
	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		h, err := scanHold(q.QueryRow(ctx, `SELECT `+holdColumns+` FROM seat_holds WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NotFound("Hold")
			}
			return fmt.Errorf("lock hold: %w", err)
		}

		changed, err := h.TransitionTo(to, now)
		if err != nil {
			return err
		}
		if changed {
			if _, err := q.Exec(ctx, `UPDATE seat_holds SET status = $1, updated_at = $2 WHERE id = $3`, h.Status, h.UpdatedAt, h.ID); err != nil {
				return fmt.Errorf("update hold status: %w", err)
			}
		}
		result = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PGSeatHoldStore) ListExpired(ctx context.Context, now time.Time) ([]domain.SeatHold, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
SELECT `+holdColumns+` FROM seat_holds
WHERE status = 'HOLD' AND expires_at < $1
ORDER BY expires_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	expired := make([]domain.SeatHold, 0)
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		expired = append(expired, *h)
	}
	return expired, rows.Err()
}

func scanHold(row pgx.Row) (*domain.SeatHold, error) {
	var h domain.SeatHold
	if err := row.Scan(&h.ID, &h.TripID, &h.SeatNumber, &h.PassengerID, &h.Status, &h.ExpiresAt, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

var _ SeatHoldStore = (*PGSeatHoldStore)(nil)
