package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
)

// CounterTTL is refreshed on every read and write of a counter key.
const CounterTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForLikeCount is the "liked you" counter of a user.
func KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

// KeyForUnreadNotifications is the unread notification counter of a user.
func KeyForUnreadNotifications(userID uint64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

// GetCounter reads a counter and refreshes its TTL.
// found is false on a cache miss so callers can fall back to the database.
func (c *RedisCache) GetCounter(ctx context.Context, key string) (n int64, found bool, err error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupt value, treat as miss
		_ = c.Client.Del(ctx, key).Err()
		return 0, false, nil
	}
	_ = c.Client.Expire(ctx, key, CounterTTL).Err()
	return n, true, nil
}

// SetCounter stores an authoritative value loaded from the database.
func (c *RedisCache) SetCounter(ctx context.Context, key string, n int64) error {
	return c.Client.Set(ctx, key, n, CounterTTL).Err()
}

// incrIfPresent bumps KEYS[1] by ARGV[1] and refreshes its TTL to ARGV[2]
// seconds, but only when the key exists. Returns 1 when it bumped.
var incrIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("INCRBY", KEYS[1], ARGV[1])
redis.call("EXPIRE", KEYS[1], ARGV[2])
return 1
`)

// IncrCounter bumps a counter only when it is already cached. Bumping a missing
// key would start it at delta and hide the real count held by the database.
// The check and the bump run as one script so an expiry cannot slip between them.
func (c *RedisCache) IncrCounter(ctx context.Context, key string, delta int64) error {
	return incrIfPresent.Run(ctx, c.Client, []string{key}, delta, int64(CounterTTL/time.Second)).Err()
}
