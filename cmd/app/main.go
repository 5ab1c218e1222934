package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/busbooking/api"
	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/bootstrap"
	"github.com/Domenick1991/busbooking/internal/cache"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/lock"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/Domenick1991/busbooking/internal/service/reaper"
	"github.com/Domenick1991/busbooking/internal/service/reservation"
	"github.com/Domenick1991/busbooking/internal/service/trips"
	"github.com/Domenick1991/busbooking/migrations"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := pflag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config (env CONFIG_PATH)")
	pflag.Parse()
	if *cfgPath == "" {
		*cfgPath = "config.yaml"
	}

	logger := log.With(log.NewStdLogger(os.Stdout), "ts", log.DefaultTimestamp, "service", "busbooking-api")
	helper := log.NewHelper(logger)

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		helper.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		helper.Fatalf("parse postgres dsn: %v", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		helper.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		helper.Fatalf("apply migrations: %v", err)
	}

	checks := []api.HealthCheck{{Name: "postgres", Probe: pool.Ping}}

	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache = cache.NewRedisCache(cfg.Redis, cfg.Reservation.TripsCacheTTL(), cfg.Reservation.LockLease(), logger)
		defer redisCache.Close()
		checks = append(checks, api.HealthCheck{Name: "redis", Probe: redisCache.Ping})
	}

	var locker reservation.SeatLocker
	switch cfg.Reservation.LockBackend {
	case config.LockBackendRedis:
		locker = redisCache
	default:
		locker = lock.NewKeyedMutex()
	}

	opts := []reservation.Option{
		reservation.WithHoldTTL(cfg.Reservation.HoldTTL()),
		reservation.WithLockTimeout(cfg.Reservation.LockTimeout()),
		reservation.WithTransactor(repository.NewTransactor(pool)),
		reservation.WithLogger(logger),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		checks = append(checks, api.HealthCheck{Name: "kafka", Probe: producer.CheckConnection})
		opts = append(opts,
			reservation.WithProducer(producer, cfg.Kafka.ReservationTopic),
			reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	tripRepo := repository.NewTripRepository(pool)
	coordinator := reservation.NewCoordinator(
		tripRepo,
		repository.NewPassengerRepository(pool),
		repository.NewSeatHoldStore(pool),
		repository.NewTicketLedger(pool, repository.WithMaxCodeAttempts(cfg.Reservation.MaxCodeAttempts)),
		locker,
		opts...,
	)

	var tripCache trips.TripCache
	if redisCache != nil {
		tripCache = redisCache
	}
	tripService := trips.NewTripService(tripRepo, tripCache, logger)

	router := api.NewRouter(api.RouterConfig{
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		Reservations: coordinator,
		Trips:        tripService,
		Checks:       checks,
		Logger:       logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bootstrap.Run(ctx, cfg.HTTP.Address, router, logger)
	})
	if cfg.Worker.EmbeddedReaper {
		g.Go(func() error {
			return reaper.New(coordinator, cfg.Worker.SweepInterval(), reaper.WithLogger(logger)).Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		helper.Fatalf("server error: %v", err)
	}
}
