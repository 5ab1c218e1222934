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

type TicketLedger struct {
	mu       sync.RWMutex
	tickets  map[string]domain.Ticket
	codes    map[string]string
	settings repository.LedgerSettings
}

func NewTicketLedger(opts ...repository.LedgerOption) *TicketLedger {
	return &TicketLedger{
		tickets:  make(map[string]domain.Ticket),
		codes:    make(map[string]string),
		settings: repository.NewLedgerSettings(opts...),
	}
}

func (l *TicketLedger) ListActive(_ context.Context, tripID int64, seat string) ([]domain.Ticket, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	active := make([]domain.Ticket, 0)
	for _, t := range l.tickets {
		if t.TripID == tripID && t.SeatNumber == seat && t.Status.Occupies() {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].FromStopOrder < active[j].FromStopOrder })
	return active, nil
}

func (l *TicketLedger) Insert(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	code, err := l.settings.AssignUniqueCode(ctx, func(_ context.Context, code string) (bool, error) {
		_, taken := l.codes[code]
		return taken, nil
	})
	if err != nil {
		return err
	}

	ticket.ID = uuid.NewString()
	ticket.Status = domain.TicketStatusSold
	ticket.QRCode = code
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	l.tickets[ticket.ID] = *ticket
	l.codes[code] = ticket.ID
	return nil
}

func (l *TicketLedger) Get(_ context.Context, id string) (*domain.Ticket, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tickets[id]
	if !ok {
		return nil, domain.NotFound("Ticket")
	}
	return &t, nil
}

func (l *TicketLedger) UpdateStatus(_ context.Context, id string, to domain.TicketStatus, now time.Time) (*domain.Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tickets[id]
	if !ok {
		return nil, domain.NotFound("Ticket")
	}
	changed, err := t.TransitionTo(to, now)
	if err != nil {
		return nil, err
	}
	if changed {
		l.tickets[id] = t
	}
	return &t, nil
}

// All returns every ticket regardless of status, ordered by trip, seat and segment.
func (l *TicketLedger) All() []domain.Ticket {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]domain.Ticket, 0, len(l.tickets))
	for _, t := range l.tickets {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TripID != all[j].TripID {
			return all[i].TripID < all[j].TripID
		}
		if all[i].SeatNumber != all[j].SeatNumber {
			return all[i].SeatNumber < all[j].SeatNumber
		}
		return all[i].FromStopOrder < all[j].FromStopOrder
	})
	return all
}

var _ repository.TicketLedger = (*TicketLedger)(nil)
