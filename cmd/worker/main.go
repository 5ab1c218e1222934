package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/cache"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/notify"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/Domenick1991/busbooking/internal/service/reaper"
	"github.com/Domenick1991/busbooking/internal/service/reservation"
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

	logger := log.With(log.NewStdLogger(os.Stdout), "ts", log.DefaultTimestamp, "service", "busbooking-worker")
	helper := log.NewHelper(logger)

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		helper.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// With in-process locks the API runs its own reaper; a second sweeper here
	// would not share the seat locks.
	if cfg.Reservation.LockBackend == config.LockBackendRedis {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			helper.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()

		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Reservation.TripsCacheTTL(), cfg.Reservation.LockLease(), logger)
		defer redisCache.Close()

		opts := []reservation.Option{
			reservation.WithLockTimeout(cfg.Reservation.LockTimeout()),
			reservation.WithTransactor(repository.NewTransactor(pool)),
			reservation.WithLogger(logger),
		}
		if len(cfg.Kafka.Brokers) > 0 {
			producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
			defer producer.Close()
			if err := producer.CheckConnection(ctx); err != nil {
				helper.Warnf("kafka not reachable yet: %v", err)
			}
			opts = append(opts,
				reservation.WithProducer(kafka.Retrying{Producer: producer, Attempts: 3}, cfg.Kafka.ReservationTopic),
				reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
			)
		}

		coordinator := reservation.NewCoordinator(
			repository.NewTripRepository(pool),
			repository.NewPassengerRepository(pool),
			repository.NewSeatHoldStore(pool),
			repository.NewTicketLedger(pool),
			redisCache,
			opts...,
		)
		g.Go(func() error {
			return reaper.New(coordinator, cfg.Worker.SweepInterval(), reaper.WithLogger(logger)).Run(ctx)
		})
	} else {
		helper.Infof("lock_backend %s: expiry sweep runs inside the API process", cfg.Reservation.LockBackend)
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer consumer.Close()
		sender := notify.NewSender(logger)
		g.Go(func() error {
			return consumer.Consume(ctx, sender.Send)
		})
	}

	if err := g.Wait(); err != nil {
		helper.Errorf("worker stopped: %v", err)
		os.Exit(1)
	}
	helper.Info("worker stopped")
}
