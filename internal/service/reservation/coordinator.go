package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/busbooking/internal/clock"
	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/go-kratos/kratos/v2/log"
)

type ReservationUseCase interface {
	Hold(ctx context.Context, input HoldInput) (*domain.SeatHold, error)
	Sell(ctx context.Context, input SellInput) (*domain.Ticket, error)
	Release(ctx context.Context, holdID string) (*domain.SeatHold, error)
	ExpireHold(ctx context.Context, holdID string) (bool, error)
	ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.SeatHold, error)
	ExistsActiveHold(ctx context.Context, tripID int64, seat string) (bool, error)
	GetHold(ctx context.Context, id string) (*domain.SeatHold, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
}

// SeatLocker is the per-(trip, seat) serialization point. Implementations
// must never block callers working on a different key.
type SeatLocker interface {
	LockSeat(ctx context.Context, tripID int64, seat string) (unlock func(), err error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

const (
	defaultHoldTTL     = 10 * time.Minute
	defaultLockTimeout = 5 * time.Second
)

// Coordinator owns every write to seat holds and tickets. All read-then-write
// sequences for a seat run under that seat's lock inside one storage
// transaction that also holds the storage's lock on the seat.
type Coordinator struct {
	trips              repository.TripRepository
	passengers         repository.PassengerRepository
	holds              repository.SeatHoldStore
	tickets            repository.TicketLedger
	tx                 repository.Transactor
	locker             SeatLocker
	clock              clock.Clock
	producer           Producer
	topic              string
	notificationsTopic string
	holdTTL            time.Duration
	lockTimeout        time.Duration
	log                *log.Helper
}

type HoldInput struct {
	TripID      int64  `json:"trip_id"`
	SeatNumber  string `json:"seat_number"`
	PassengerID int64  `json:"passenger_id"`
}

type SellInput struct {
	TripID      int64  `json:"trip_id"`
	SeatNumber  string `json:"seat_number"`
	PassengerID int64  `json:"passenger_id"`
	FromStopID  int64  `json:"from_stop_id"`
	ToStopID    int64  `json:"to_stop_id"`
	Price       int64  `json:"price"`
}

type Option func(*Coordinator)

// WithHoldTTL sets how long a new hold blocks its seat.
func WithHoldTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.holdTTL = d
		}
	}
}

// WithLockTimeout bounds how long a call waits for a contended seat.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

func WithTransactor(tx repository.Transactor) Option {
	return func(c *Coordinator) {
		c.tx = tx
	}
}

func WithProducer(p Producer, topic string) Option {
	return func(c *Coordinator) {
		c.producer = p
		c.topic = topic
	}
}

func WithNotificationsTopic(topic string) Option {
	return func(c *Coordinator) {
		c.notificationsTopic = topic
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *Coordinator) {
		c.log = log.NewHelper(log.With(logger, "module", "reservation"))
	}
}

func NewCoordinator(
	trips repository.TripRepository,
	passengers repository.PassengerRepository,
	holds repository.SeatHoldStore,
	tickets repository.TicketLedger,
	locker SeatLocker,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		trips:       trips,
		passengers:  passengers,
		holds:       holds,
		tickets:     tickets,
		tx:          repository.NoopTransactor{},
		locker:      locker,
		clock:       clock.NewSystem(),
		holdTTL:     defaultHoldTTL,
		lockTimeout: defaultLockTimeout,
		log:         log.NewHelper(log.With(log.DefaultLogger, "module", "reservation")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Hold(ctx context.Context, input HoldInput) (*domain.SeatHold, error) {
	if err := validateSeat(input.TripID, input.SeatNumber, input.PassengerID); err != nil {
		return nil, err
	}
	if _, err := c.bookableTrip(ctx, input.TripID); err != nil {
		return nil, err
	}
	if err := c.requirePassenger(ctx, input.PassengerID); err != nil {
		return nil, err
	}

	var hold *domain.SeatHold
	err := c.withSeat(ctx, input.TripID, input.SeatNumber, func(ctx context.Context, now time.Time) error {
		h, err := c.holds.Create(ctx, input.TripID, input.SeatNumber, input.PassengerID, now, c.holdTTL)
		switch {
		case errors.Is(err, domain.ErrSeatSold):
			return domain.AlreadyExists("Seat %s sold on trip %d", input.SeatNumber, input.TripID)
		case errors.Is(err, domain.ErrSeatHeld):
			return domain.AlreadyExists("Seat %s already reserved", input.SeatNumber)
		case err != nil:
			return infra("create hold", err)
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Infow("msg", "hold created", "hold_id", hold.ID, "trip_id", hold.TripID, "seat", hold.SeatNumber,
		"passenger_id", hold.PassengerID, "expires_at", hold.ExpiresAt)
	c.publish(ctx, kafka.HoldEvent(kafka.EventHoldCreated, hold, hold.CreatedAt))
	return hold, nil
}

func (c *Coordinator) Sell(ctx context.Context, input SellInput) (*domain.Ticket, error) {
	if err := validateSeat(input.TripID, input.SeatNumber, input.PassengerID); err != nil {
		return nil, err
	}
	if input.Price < 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "price must not be negative")
	}
	trip, err := c.bookableTrip(ctx, input.TripID)
	if err != nil {
		return nil, err
	}
	segment, err := c.resolveSegment(ctx, trip, input.FromStopID, input.ToStopID)
	if err != nil {
		return nil, err
	}
	if err := c.requirePassenger(ctx, input.PassengerID); err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	err = c.withSeat(ctx, input.TripID, input.SeatNumber, func(ctx context.Context, now time.Time) error {
		active, err := c.tickets.ListActive(ctx, input.TripID, input.SeatNumber)
		if err != nil {
			return infra("list active tickets", err)
		}
		overlap, err := domain.ExistsOverlap(input.TripID, input.SeatNumber, segment, active)
		if err != nil {
			return err
		}
		if overlap {
			return domain.AlreadyExists("Already exists a Ticket for the %s seat", input.SeatNumber)
		}

		hold, err := c.holds.FindActive(ctx, input.TripID, input.SeatNumber, now)
		if err != nil {
			return infra("find active hold", err)
		}
		if hold != nil && hold.PassengerID != input.PassengerID {
			return domain.AlreadyExists("The seat %s is hold by another passenger", input.SeatNumber)
		}

		t := &domain.Ticket{
			TripID:        input.TripID,
			PassengerID:   input.PassengerID,
			SeatNumber:    input.SeatNumber,
			FromStopOrder: segment.From,
			ToStopOrder:   segment.To,
			Price:         input.Price,
		}
		if hold != nil {
			t.HoldID = hold.ID
		}
		if err := c.tickets.Insert(ctx, t, now); err != nil {
			return infra("insert ticket", err)
		}
		if hold != nil {
			if _, err := c.holds.Transition(ctx, hold.ID, domain.HoldStatusSold, now); err != nil {
				return infra("consume hold", err)
			}
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Infow("msg", "ticket sold", "ticket_id", ticket.ID, "trip_id", ticket.TripID, "seat", ticket.SeatNumber,
		"passenger_id", ticket.PassengerID, "from", ticket.FromStopOrder, "to", ticket.ToStopOrder, "hold_id", ticket.HoldID)
	c.publish(ctx, kafka.TicketEvent(ticket))
	return ticket, nil
}

// Release cancels a hold on the passenger's request. Releasing an already
// released hold is a no-op.
func (c *Coordinator) Release(ctx context.Context, holdID string) (*domain.SeatHold, error) {
	hold, err := c.holds.Get(ctx, holdID)
	if err != nil {
		return nil, infra("get hold", err)
	}

	var released *domain.SeatHold
	var changed bool
	err = c.withSeat(ctx, hold.TripID, hold.SeatNumber, func(ctx context.Context, now time.Time) error {
		current, err := c.holds.Get(ctx, holdID)
		if err != nil {
			return infra("get hold", err)
		}
		if current.Status == domain.HoldStatusReleased {
			released = current
			return nil
		}
		released, err = c.holds.Transition(ctx, holdID, domain.HoldStatusReleased, now)
		if err != nil {
			return infra("release hold", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.log.Infow("msg", "hold released", "hold_id", released.ID, "trip_id", released.TripID, "seat", released.SeatNumber)
		c.publish(ctx, kafka.HoldEvent(kafka.EventHoldReleased, released, released.UpdatedAt))
	}
	return released, nil
}

// ExpireHold moves one stale hold to EXPIRED under its seat lock. It reports
// false without error when the hold was consumed, released or already expired
// in the meantime, or has not reached its expiry yet.
func (c *Coordinator) ExpireHold(ctx context.Context, holdID string) (bool, error) {
	hold, err := c.holds.Get(ctx, holdID)
	if err != nil {
		return false, infra("get hold", err)
	}

	var expired *domain.SeatHold
	err = c.withSeat(ctx, hold.TripID, hold.SeatNumber, func(ctx context.Context, now time.Time) error {
		current, err := c.holds.Get(ctx, holdID)
		if err != nil {
			return infra("get hold", err)
		}
		if current.Status != domain.HoldStatusHold || !current.Expired(now) {
			return nil
		}
		expired, err = c.holds.Transition(ctx, holdID, domain.HoldStatusExpired, now)
		if err != nil {
			return infra("expire hold", err)
		}
		return nil
	})
	if err != nil || expired == nil {
		return false, err
	}

	c.log.Infow("msg", "hold expired", "hold_id", expired.ID, "trip_id", expired.TripID, "seat", expired.SeatNumber)
	c.publish(ctx, kafka.HoldEvent(kafka.EventHoldExpired, expired, expired.UpdatedAt))
	return true, nil
}

func (c *Coordinator) ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.SeatHold, error) {
	holds, err := c.holds.ListExpired(ctx, now)
	if err != nil {
		return nil, infra("list expired holds", err)
	}
	return holds, nil
}

func (c *Coordinator) ExistsActiveHold(ctx context.Context, tripID int64, seat string) (bool, error) {
	hold, err := c.holds.FindActive(ctx, tripID, seat, c.clock.Now())
	if err != nil {
		return false, infra("find active hold", err)
	}
	return hold != nil, nil
}

func (c *Coordinator) GetHold(ctx context.Context, id string) (*domain.SeatHold, error) {
	hold, err := c.holds.Get(ctx, id)
	if err != nil {
		return nil, infra("get hold", err)
	}
	return hold, nil
}

func (c *Coordinator) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := c.tickets.Get(ctx, id)
	if err != nil {
		return nil, infra("get ticket", err)
	}
	return ticket, nil
}

// withSeat runs fn inside one storage transaction while holding the seat's
// lock and the storage's own seat lock. The locker keeps contention inside a
// process cheap; the storage lock is what serializes replicas sharing one
// database. now is read after both are held so expiry decisions reflect the
// moment the seat is owned.
func (c *Coordinator) withSeat(ctx context.Context, tripID int64, seat string, fn func(ctx context.Context, now time.Time) error) error {
	deadline := time.Now().Add(c.lockTimeout)
	lockCtx, cancel := context.WithDeadline(ctx, deadline)
	unlock, err := c.locker.LockSeat(lockCtx, tripID, seat)
	cancel()
	if err != nil {
		return fmt.Errorf("lock seat: %w", err)
	}
	defer unlock()

	return c.tx.WithTx(ctx, func(ctx context.Context) error {
		lockCtx, cancel := context.WithDeadline(ctx, deadline)
		err := c.tx.LockSeatTx(lockCtx, tripID, seat)
		cancel()
		if err != nil {
			return fmt.Errorf("lock seat: %w", err)
		}
		return fn(ctx, c.clock.Now())
	})
}

func (c *Coordinator) bookableTrip(ctx context.Context, tripID int64) (*domain.Trip, error) {
	trip, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, infra("get trip", err)
	}
	if !trip.Bookable() {
		return nil, domain.Errorf(domain.ErrTripNotBookable, "Trip %d is %s and no longer accepts reservations", trip.ID, trip.Status)
	}
	return trip, nil
}

func (c *Coordinator) requirePassenger(ctx context.Context, passengerID int64) error {
	ok, err := c.passengers.Exists(ctx, passengerID)
	if err != nil {
		return infra("check passenger", err)
	}
	if !ok {
		return domain.NotFound("Passenger")
	}
	return nil
}

func (c *Coordinator) resolveSegment(ctx context.Context, trip *domain.Trip, fromStopID, toStopID int64) (domain.Segment, error) {
	from, err := c.trips.GetStop(ctx, fromStopID)
	if err != nil {
		return domain.Segment{}, infra("get stop", err)
	}
	to, err := c.trips.GetStop(ctx, toStopID)
	if err != nil {
		return domain.Segment{}, infra("get stop", err)
	}
	for _, s := range []*domain.Stop{from, to} {
		if s.RouteID != trip.RouteID {
			return domain.Segment{}, domain.Errorf(domain.ErrInvalidSegment, "Stop %d is not on route %d of trip %d", s.ID, trip.RouteID, trip.ID)
		}
	}

	segment := domain.Segment{From: from.Order, To: to.Order}
	if err := segment.Validate(); err != nil {
		return domain.Segment{}, err
	}
	return segment, nil
}

func (c *Coordinator) publish(ctx context.Context, event kafka.ReservationEvent) {
	if c.producer == nil || c.topic == "" {
		return
	}
	if err := c.producer.Publish(ctx, c.topic, event.Key(), event); err != nil {
		c.log.Warnf("publish %s for %s: %v", event.Type, event.Key(), err)
		return
	}
	if c.notificationsTopic != "" {
		if err := c.producer.Publish(ctx, c.notificationsTopic, event.Key(), event); err != nil {
			c.log.Warnf("publish notification %s for %s: %v", event.Type, event.Key(), err)
		}
	}
}

func validateSeat(tripID int64, seat string, passengerID int64) error {
	switch {
	case tripID <= 0:
		return domain.Errorf(domain.ErrInvalidArgument, "trip id must be positive")
	case seat == "":
		return domain.Errorf(domain.ErrInvalidArgument, "seat number is required")
	case passengerID <= 0:
		return domain.Errorf(domain.ErrInvalidArgument, "passenger id must be positive")
	}
	return nil
}

// infra wraps storage failures with the failed step and passes reservation
// outcomes through untouched, so callers never confuse the two.
func infra(op string, err error) error {
	if domain.IsBusiness(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ ReservationUseCase = (*Coordinator)(nil)
