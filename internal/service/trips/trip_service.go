package trips

import (
	"context"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/singleflight"
)

type TripUseCase interface {
	List(ctx context.Context) ([]domain.Trip, error)
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
}

type TripCache interface {
	GetTrips(ctx context.Context) ([]domain.Trip, error)
	SetTrips(ctx context.Context, trips []domain.Trip) error
}

type TripService struct {
	repo  repository.TripRepository
	cache TripCache
	group singleflight.Group
	log   *log.Helper
}

// NewTripService builds the catalog read path. cache may be nil.
func NewTripService(repo repository.TripRepository, cache TripCache, logger log.Logger) *TripService {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &TripService{
		repo:  repo,
		cache: cache,
		log:   log.NewHelper(log.With(logger, "module", "trips")),
	}
}

// List serves from cache when possible. Concurrent misses share one
// repository query.
func (s *TripService) List(ctx context.Context) ([]domain.Trip, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTrips(ctx)
		if err != nil {
			s.log.Warnf("read trips cache: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	// The shared query outlives any single caller's cancellation; each caller
	// still stops waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan("trips", func() (interface{}, error) {
		trips, err := s.repo.List(shared)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetTrips(shared, trips); err != nil {
				s.log.Warnf("write trips cache: %v", err)
			}
		}
		return trips, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Trip), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *TripService) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	return s.repo.GetByID(ctx, id)
}

var _ TripUseCase = (*TripService)(nil)
