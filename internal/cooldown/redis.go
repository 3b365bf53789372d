package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/pkg/utils"
)

// reserveScript sets KEYS[1] to ARGV[1] (unix ms) with a PX of ARGV[2] unless
// the stored fire time is still inside the window. Returns 1 when it wrote.
var reserveScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and (tonumber(ARGV[1]) - tonumber(v)) < tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// RedisStore keeps cooldowns in Redis so several replicas share one window.
// Values are the fire time in unix milliseconds; keys expire after the window.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string, window time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		window: window,
	}
}

// DialRedis parses a redis:// URL, connects and pings with retry.
func DialRedis(ctx context.Context, url string, retry utils.RetryConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	err = utils.Retry(ctx, retry, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, apperrors.NewStoreError("redis", "connect", err)
	}
	return client, nil
}

// IsCoolingDown reports whether the pair fired within the window before now.
func (s *RedisStore) IsCoolingDown(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	key := Key(s.prefix, ticker, dir)

	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperrors.NewStoreError("redis", "is_cooling_down", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Unreadable entry: treat as cooling so we never double-fire on it.
		return true, apperrors.NewStoreError("redis", "is_cooling_down", fmt.Errorf("corrupt value %q for %s", raw, key))
	}
	return cooling(time.UnixMilli(ms), now, s.window), nil
}

// TryReserve atomically records now if the pair is not cooling down.
func (s *RedisStore) TryReserve(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	key := Key(s.prefix, ticker, dir)

	won, err := reserveScript.Run(ctx, s.client, []string{key}, now.UnixMilli(), s.window.Milliseconds()).Int()
	if err != nil {
		return false, apperrors.NewStoreError("redis", "try_reserve", err)
	}
	return won == 1, nil
}

// RecordFired overwrites the pair's fire time and restarts its TTL.
func (s *RedisStore) RecordFired(ctx context.Context, ticker string, dir models.Direction, now time.Time) error {
	key := Key(s.prefix, ticker, dir)

	if err := s.client.Set(ctx, key, now.UnixMilli(), s.window).Err(); err != nil {
		return apperrors.NewStoreError("redis", "record_fired", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewStoreError("redis", "ping", err)
	}
	return nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
