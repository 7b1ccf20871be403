package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ieraasyl/DispenserClient/pkg/cache"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
)

// RedisDB keeps client state in Redis. Values are stored JSON-encoded through
// the cache package and never expire.
type RedisDB struct {
	client *redis.Client
	cache  *cache.Cache
}

// NewRedisDB connects to Redis, retrying the first ping with
// utils.DatabaseRetryConfig for at most connectTimeout. It serves as a
// state backend and as the devserver's rate limit counter.
func NewRedisDB(ctx context.Context, cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
		defer pingCancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.Address(), err)
	}

	log.Info().Str("addr", cfg.Address()).Msg("Connected to Redis")

	return &RedisDB{client: client, cache: cache.NewCache(client)}, nil
}

// Get returns the value stored under key. The boolean is false when the key
// is absent.
func (r *RedisDB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.cache.Get(ctx, key, &value)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (r *RedisDB) Set(ctx context.Context, key, value string) error {
	return r.cache.Set(ctx, key, value, 0)
}

// Delete removes key.
func (r *RedisDB) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}

// IncrementRateLimit counts one request of ip on endpoint in a fixed
// window that opens with the first request. The counter lives under
// "ratelimit:{ip}:{endpoint}".
func (r *RedisDB) IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	key := "ratelimit:" + ip + ":" + endpoint

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("count request for %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("open window for %s: %w", key, err)
		}
	}
	return count, nil
}

func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisDB) Close() error {
	return r.client.Close()
}
