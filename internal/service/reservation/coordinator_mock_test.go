package reservation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Domenick1991/busbooking/internal/clock"
	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/lock"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTripRepository struct {
	mock.Mock
}

func (m *MockTripRepository) List(ctx context.Context) ([]domain.Trip, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Trip), args.Error(1)
}

func (m *MockTripRepository) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}

func (m *MockTripRepository) GetStop(ctx context.Context, id int64) (*domain.Stop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stop), args.Error(1)
}

type MockPassengerRepository struct {
	mock.Mock
}

func (m *MockPassengerRepository) Exists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockSeatHoldStore struct {
	mock.Mock
}

func (m *MockSeatHoldStore) Create(ctx context.Context, tripID int64, seat string, passengerID int64, now time.Time, ttl time.Duration) (*domain.SeatHold, error) {
	args := m.Called(ctx, tripID, seat, passengerID, now, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatHold), args.Error(1)
}

func (m *MockSeatHoldStore) Get(ctx context.Context, id string) (*domain.SeatHold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatHold), args.Error(1)
}

func (m *MockSeatHoldStore) FindActive(ctx context.Context, tripID int64, seat string, now time.Time) (*domain.SeatHold, error) {
	args := m.Called(ctx, tripID, seat, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatHold), args.Error(1)
}

func (m *MockSeatHoldStore) Transition(ctx context.Context, id string, to domain.HoldStatus, now time.Time) (*domain.SeatHold, error) {
	args := m.Called(ctx, id, to, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatHold), args.Error(1)
}

func (m *MockSeatHoldStore) ListExpired(ctx context.Context, now time.Time) ([]domain.SeatHold, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SeatHold), args.Error(1)
}

type MockTicketLedger struct {
	mock.Mock
}

func (m *MockTicketLedger) ListActive(ctx context.Context, tripID int64, seat string) ([]domain.Ticket, error) {
	args := m.Called(ctx, tripID, seat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockTicketLedger) Insert(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	args := m.Called(ctx, ticket, now)
	return args.Error(0)
}

func (m *MockTicketLedger) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketLedger) UpdateStatus(ctx context.Context, id string, to domain.TicketStatus, now time.Time) (*domain.Ticket, error) {
	args := m.Called(ctx, id, to, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

type MockSeatLocker struct {
	mock.Mock
}

func (m *MockSeatLocker) LockSeat(ctx context.Context, tripID int64, seat string) (func(), error) {
	args := m.Called(ctx, tripID, seat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type mocks struct {
	trips      *MockTripRepository
	passengers *MockPassengerRepository
	holds      *MockSeatHoldStore
	tickets    *MockTicketLedger
	producer   *MockProducer
	now        time.Time
}

func newMockedCoordinator(locker SeatLocker, opts ...Option) (*Coordinator, *mocks) {
	m := &mocks{
		trips:      &MockTripRepository{},
		passengers: &MockPassengerRepository{},
		holds:      &MockSeatHoldStore{},
		tickets:    &MockTicketLedger{},
		producer:   &MockProducer{},
		now:        time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC),
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	opts = append([]Option{
		WithClock(clock.NewFixed(m.now)),
		WithLogger(log.NewStdLogger(io.Discard)),
		WithProducer(m.producer, "reservations"),
	}, opts...)
	return NewCoordinator(m.trips, m.passengers, m.holds, m.tickets, locker, opts...), m
}

func (m *mocks) bookableTrip() {
	m.trips.On("GetByID", mock.Anything, int64(1)).
		Return(&domain.Trip{ID: 1, RouteID: 10, Status: domain.TripStatusScheduled}, nil)
	m.passengers.On("Exists", mock.Anything, int64(7)).Return(true, nil)
}

func (m *mocks) stops() {
	m.trips.On("GetStop", mock.Anything, int64(101)).Return(&domain.Stop{ID: 101, RouteID: 10, Order: 1}, nil)
	m.trips.On("GetStop", mock.Anything, int64(103)).Return(&domain.Stop{ID: 103, RouteID: 10, Order: 3}, nil)
}

var sellInput = SellInput{TripID: 1, SeatNumber: "A12", PassengerID: 7, FromStopID: 101, ToStopID: 103, Price: 45000}

func TestCoordinator_Hold_PublishesEvent(t *testing.T) {
	c, m := newMockedCoordinator(nil, WithNotificationsTopic("notifications"))
	m.bookableTrip()

	hold := &domain.SeatHold{ID: "h-1", TripID: 1, SeatNumber: "A12", PassengerID: 7, Status: domain.HoldStatusHold,
		ExpiresAt: m.now.Add(10 * time.Minute), CreatedAt: m.now}
	m.holds.On("Create", mock.Anything, int64(1), "A12", int64(7), m.now, 10*time.Minute).Return(hold, nil)
	m.producer.On("Publish", mock.Anything, "reservations", "trip:1:seat:A12", mock.MatchedBy(func(e kafka.ReservationEvent) bool {
		return e.Type == kafka.EventHoldCreated && e.HoldID == "h-1"
	})).Return(nil).Once()
	m.producer.On("Publish", mock.Anything, "notifications", "trip:1:seat:A12", mock.Anything).Return(nil).Once()

	got, err := c.Hold(context.Background(), HoldInput{TripID: 1, SeatNumber: "A12", PassengerID: 7})
	require.NoError(t, err)
	assert.Equal(t, "h-1", got.ID)
	m.holds.AssertExpectations(t)
	m.producer.AssertExpectations(t)
}

func TestCoordinator_Hold_PublishFailureIsNotFatal(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	m.bookableTrip()

	m.holds.On("Create", mock.Anything, int64(1), "A12", int64(7), m.now, mock.Anything).
		Return(&domain.SeatHold{ID: "h-1", TripID: 1, SeatNumber: "A12"}, nil)
	m.producer.On("Publish", mock.Anything, "reservations", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := c.Hold(context.Background(), HoldInput{TripID: 1, SeatNumber: "A12", PassengerID: 7})
	assert.NoError(t, err)
}

func TestCoordinator_Hold_StoreFailure(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	m.bookableTrip()
	dbErr := errors.New("connection reset")
	m.holds.On("Create", mock.Anything, int64(1), "A12", int64(7), m.now, mock.Anything).Return(nil, dbErr)

	_, err := c.Hold(context.Background(), HoldInput{TripID: 1, SeatNumber: "A12", PassengerID: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, domain.IsBusiness(err))
	m.producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Hold_ValidationSkipsStores(t *testing.T) {
	c, m := newMockedCoordinator(nil)

	_, err := c.Hold(context.Background(), HoldInput{TripID: 0, SeatNumber: "A12", PassengerID: 7})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = c.Hold(context.Background(), HoldInput{TripID: 1, SeatNumber: "A12", PassengerID: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	m.trips.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	m.holds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_LockTimeoutIsInfrastructure(t *testing.T) {
	locker := &MockSeatLocker{}
	locker.On("LockSeat", mock.Anything, int64(1), "A12").Return(nil, context.DeadlineExceeded)

	c, m := newMockedCoordinator(locker, WithLockTimeout(50*time.Millisecond))
	m.bookableTrip()
	m.stops()

	_, err := c.Sell(context.Background(), sellInput)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, domain.IsBusiness(err))
	m.tickets.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Sell_LockScopedToSeat(t *testing.T) {
	var unlocked bool
	locker := &MockSeatLocker{}
	locker.On("LockSeat", mock.Anything, int64(1), "A12").Return(func() { unlocked = true }, nil).Once()

	c, m := newMockedCoordinator(locker)
	m.bookableTrip()
	m.stops()
	m.tickets.On("ListActive", mock.Anything, int64(1), "A12").Return([]domain.Ticket{}, nil)
	m.holds.On("FindActive", mock.Anything, int64(1), "A12", m.now).Return(nil, nil)
	m.tickets.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Ticket"), m.now).Run(func(args mock.Arguments) {
		tk := args.Get(1).(*domain.Ticket)
		tk.ID = "t-1"
		tk.Status = domain.TicketStatusSold
	}).Return(nil)
	m.producer.On("Publish", mock.Anything, "reservations", "trip:1:seat:A12", mock.MatchedBy(func(e kafka.ReservationEvent) bool {
		return e.Type == kafka.EventTicketSold && e.TicketID == "t-1"
	})).Return(nil)

	ticket, err := c.Sell(context.Background(), sellInput)
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.FromStopOrder)
	assert.Equal(t, 3, ticket.ToStopOrder)
	assert.Equal(t, int64(45000), ticket.Price)
	assert.True(t, unlocked)
	locker.AssertExpectations(t)
	m.holds.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Sell_LedgerFailure(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	m.bookableTrip()
	m.stops()
	dbErr := errors.New("timeout")
	m.tickets.On("ListActive", mock.Anything, int64(1), "A12").Return(nil, dbErr)

	_, err := c.Sell(context.Background(), sellInput)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "list active tickets")
	m.holds.AssertNotCalled(t, "FindActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Sell_InsertFailureKeepsHold(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	m.bookableTrip()
	m.stops()
	m.tickets.On("ListActive", mock.Anything, int64(1), "A12").Return([]domain.Ticket{}, nil)
	m.holds.On("FindActive", mock.Anything, int64(1), "A12", m.now).
		Return(&domain.SeatHold{ID: "h-1", PassengerID: 7, Status: domain.HoldStatusHold, ExpiresAt: m.now.Add(time.Minute)}, nil)
	m.tickets.On("Insert", mock.Anything, mock.Anything, m.now).Return(errors.New("disk full"))

	_, err := c.Sell(context.Background(), sellInput)
	require.Error(t, err)
	m.holds.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Sell_TripLookupFailure(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	dbErr := errors.New("pool closed")
	m.trips.On("GetByID", mock.Anything, int64(1)).Return(nil, dbErr)

	_, err := c.Sell(context.Background(), sellInput)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, domain.IsBusiness(err))
}

func TestCoordinator_ListExpiredHolds(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	at := m.now.Add(time.Hour)
	m.holds.On("ListExpired", mock.Anything, at).Return([]domain.SeatHold{{ID: "a"}, {ID: "b"}}, nil)

	holds, err := c.ListExpiredHolds(context.Background(), at)
	require.NoError(t, err)
	assert.Len(t, holds, 2)
}

func TestCoordinator_GetTicket(t *testing.T) {
	c, m := newMockedCoordinator(nil)
	m.tickets.On("Get", mock.Anything, "t-1").Return(&domain.Ticket{ID: "t-1"}, nil)
	m.tickets.On("Get", mock.Anything, "missing").Return(nil, domain.NotFound("Ticket"))

	ticket, err := c.GetTicket(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", ticket.ID)

	_, err = c.GetTicket(context.Background(), "missing")
	assert.EqualError(t, err, "Ticket not found")
}

func TestNewCoordinator_Defaults(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, nil, lock.NewKeyedMutex(), WithHoldTTL(0), WithLockTimeout(-1))
	assert.Equal(t, defaultHoldTTL, c.holdTTL)
	assert.Equal(t, defaultLockTimeout, c.lockTimeout)
	assert.NotNil(t, c.clock)
	assert.NotNil(t, c.tx)

	// no producer configured
	c.publish(context.Background(), kafka.ReservationEvent{Type: kafka.EventHoldCreated})
}
