package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	minLockBackoff = 5 * time.Millisecond
	maxLockBackoff = 200 * time.Millisecond
)

// releaseScript deletes the lock only if it still carries our token, so a
// lease that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisCache struct {
	client    redis.UniversalClient
	tripsTTL  time.Duration
	lockLease time.Duration
	log       *log.Helper
}

func NewRedisCache(cfg config.RedisConfig, tripsTTL, lockLease time.Duration, logger log.Logger) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), tripsTTL, lockLease, logger)
}

func NewRedisCacheWithClient(client redis.UniversalClient, tripsTTL, lockLease time.Duration, logger log.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		tripsTTL:  tripsTTL,
		lockLease: lockLease,
		log:       log.NewHelper(log.With(logger, "module", "cache")),
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetTrips(ctx context.Context) ([]domain.Trip, error) {
	data, err := c.client.Get(ctx, tripsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var trips []domain.Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *RedisCache) SetTrips(ctx context.Context, trips []domain.Trip) error {
	payload, err := json.Marshal(trips)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tripsKey(), payload, c.tripsTTL).Err()
}

// LockSeat takes the distributed lease for one seat on one trip, polling with
// capped exponential backoff until it is free or ctx is done. The lease
// expires on its own after lockLease if the holder dies.
func (c *RedisCache) LockSeat(ctx context.Context, tripID int64, seat string) (func(), error) {
	key := seatLockKey(tripID, seat)
	token := uuid.NewString()
	backoff := minLockBackoff

	for {
		ok, err := c.client.SetNX(ctx, key, token, c.lockLease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire seat lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("acquire seat lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
		if backoff < maxLockBackoff {
			backoff *= 2
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, c.client, []string{key}, token).Err(); err != nil {
			c.log.Warnf("release seat lock %s: %v", key, err)
		}
	}, nil
}

func tripsKey() string {
	return "cache:trips"
}

func seatLockKey(tripID int64, seat string) string {
	return fmt.Sprintf("lock:trip:%d:seat:%s", tripID, seat)
}
