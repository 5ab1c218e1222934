package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TripRepository is the read-only trip and stop catalogue the reservation
// engine consults before touching seat state.
type TripRepository interface {
	List(ctx context.Context) ([]domain.Trip, error)
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
	GetStop(ctx context.Context, id int64) (*domain.Stop, error)
}

type PassengerRepository interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type PGTripRepository struct {
	db *pgxpool.Pool
}

func NewTripRepository(db *pgxpool.Pool) TripRepository {
	return &PGTripRepository{db: db}
}

const tripColumns = `id, route_id, departure_at, arrival_eta, status, created_at, updated_at`

func (r *PGTripRepository) List(ctx context.Context) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY departure_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := make([]domain.Trip, 0)
	for rows.Next() {
		var t domain.Trip
		if err := rows.Scan(&t.ID, &t.RouteID, &t.DepartureAt, &t.ArrivalETA, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (r *PGTripRepository) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	var t domain.Trip
	if err := row.Scan(&t.ID, &t.RouteID, &t.DepartureAt, &t.ArrivalETA, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("Trip")
		}
		return nil, fmt.Errorf("get trip: %w", err)
	}
	return &t, nil
}

func (r *PGTripRepository) GetStop(ctx context.Context, id int64) (*domain.Stop, error) {
	row := r.db.QueryRow(ctx, `SELECT id, route_id, name, stop_order FROM stops WHERE id = $1`, id)
	var s domain.Stop
	if err := row.Scan(&s.ID, &s.RouteID, &s.Name, &s.Order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("Stop")
		}
		return nil, fmt.Errorf("get stop: %w", err)
	}
	return &s, nil
}

type PGPassengerRepository struct {
	db *pgxpool.Pool
}

func NewPassengerRepository(db *pgxpool.Pool) PassengerRepository {
	return &PGPassengerRepository{db: db}
}

func (r *PGPassengerRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM passengers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check passenger: %w", err)
	}
	return exists, nil
}

var (
	_ TripRepository      = (*PGTripRepository)(nil)
	_ PassengerRepository = (*PGPassengerRepository)(nil)
)
