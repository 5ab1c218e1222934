// Package reaper periodically moves holds whose TTL has elapsed to EXPIRED.
package reaper

import (
	"context"
	"time"

	"github.com/Domenick1991/busbooking/internal/clock"
	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/go-kratos/kratos/v2/log"
)

// Expirer is the slice of the reservation coordinator the reaper drives.
type Expirer interface {
	ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.SeatHold, error)
	ExpireHold(ctx context.Context, holdID string) (bool, error)
}

type Reaper struct {
	expirer  Expirer
	clock    clock.Clock
	interval time.Duration
	log      *log.Helper
}

type Option func(*Reaper)

func WithClock(clk clock.Clock) Option {
	return func(r *Reaper) {
		r.clock = clk
	}
}

func WithLogger(logger log.Logger) Option {
	return func(r *Reaper) {
		r.log = log.NewHelper(log.With(logger, "module", "reaper"))
	}
}

func New(expirer Expirer, interval time.Duration, opts ...Option) *Reaper {
	r := &Reaper{
		expirer:  expirer,
		clock:    clock.NewSystem(),
		interval: interval,
		log:      log.NewHelper(log.With(log.DefaultLogger, "module", "reaper")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps once per interval until ctx is done. A failed sweep is logged
// and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Infof("expiry sweep every %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expired, err := r.Sweep(ctx)
			if err != nil {
				r.log.Errorf("expire holds: %v", err)
				continue
			}
			if expired > 0 {
				r.log.Infof("expired %d holds", expired)
			}
		}
	}
}

// Sweep expires every hold that is stale at the current time and returns how
// many actually changed state. Holds consumed or released between listing and
// expiring are skipped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	holds, err := r.expirer.ListExpiredHolds(ctx, r.clock.Now())
	if err != nil {
		return 0, err
	}

	var expired int
	for _, h := range holds {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		changed, err := r.expirer.ExpireHold(ctx, h.ID)
		if err != nil {
			r.log.Warnf("expire hold %s on %s: %v", h.ID, domain.SeatRef(h.TripID, h.SeatNumber), err)
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}
