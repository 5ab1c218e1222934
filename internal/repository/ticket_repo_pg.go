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

// TicketLedger persists sold tickets and answers overlap queries.
type TicketLedger interface {
	ListActive(ctx context.Context, tripID int64, seat string) ([]domain.Ticket, error)
	Insert(ctx context.Context, ticket *domain.Ticket, now time.Time) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, to domain.TicketStatus, now time.Time) (*domain.Ticket, error)
}

type PGTicketLedger struct {
	db       *pgxpool.Pool
	settings LedgerSettings
}

func NewTicketLedger(db *pgxpool.Pool, opts ...LedgerOption) TicketLedger {
	return &PGTicketLedger{db: db, settings: NewLedgerSettings(opts...)}
}

const (
	ticketColumns      = `id, trip_id, passenger_id, seat_number, from_stop_order, to_stop_order, price, status, qr_code, hold_id, created_at, updated_at`
	qrCodeUniqueConstr = "tickets_qr_code_key"
)

func (r *PGTicketLedger) ListActive(ctx context.Context, tripID int64, seat string) ([]domain.Ticket, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
SELECT `+ticketColumns+` FROM tickets
WHERE trip_id = $1 AND seat_number = $2 AND status IN ('SOLD', 'USED')
ORDER BY from_stop_order`, tripID, seat)
	if err != nil {
		return nil, fmt.Errorf("list active tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (r *PGTicketLedger) Insert(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	ticket.ID = uuid.NewString()
	ticket.Status = domain.TicketStatusSold
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	return withTx(ctx, r.db, func(ctx context.Context) error {
		tx := txFromContext(ctx)
		code, err := r.settings.AssignUniqueCode(ctx, func(ctx context.Context, code string) (bool, error) {
			// A savepoint keeps the outer transaction usable after a collision.
			sp, err := tx.Begin(ctx)
			if err != nil {
				return false, fmt.Errorf("begin savepoint: %w", err)
			}
			_, err = sp.Exec(ctx, `
INSERT INTO tickets (`+ticketColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`,
				ticket.ID, ticket.TripID, ticket.PassengerID, ticket.SeatNumber, ticket.FromStopOrder, ticket.ToStopOrder,
				ticket.Price, ticket.Status, code, ticket.HoldID, ticket.CreatedAt, ticket.UpdatedAt)
			if err != nil {
				_ = sp.Rollback(ctx)
				if isUniqueViolation(err, qrCodeUniqueConstr) {
					return true, nil
				}
				return false, fmt.Errorf("insert ticket: %w", err)
			}
			return false, sp.Commit(ctx)
		})
		if err != nil {
			return err
		}
		ticket.QRCode = code
		return nil
	})
}

func (r *PGTicketLedger) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := scanTicket(conn(ctx, r.db).QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("Ticket")
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *PGTicketLedger) UpdateStatus(ctx context.Context, id string, to domain.TicketStatus, now time.Time) (*domain.Ticket, error) {
	var result *domain.Ticket
	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		t, err := scanTicket(q.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NotFound("Ticket")
			}
			return fmt.Errorf("lock ticket: %w", err)
		}
		changed, err := t.TransitionTo(to, now)
		if err != nil {
			return err
		}
		if changed {
			if _, err := q.Exec(ctx, `UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`, t.Status, t.UpdatedAt, t.ID); err != nil {
				return fmt.Errorf("update ticket status: %w", err)
			}
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var holdID *string
	if err := row.Scan(&t.ID, &t.TripID, &t.PassengerID, &t.SeatNumber, &t.FromStopOrder, &t.ToStopOrder,
		&t.Price, &t.Status, &t.QRCode, &holdID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if holdID != nil {
		t.HoldID = *holdID
	}
	return &t, nil
}

var _ TicketLedger = (*PGTicketLedger)(nil)
