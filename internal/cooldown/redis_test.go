package cooldown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/pkg/utils"
)

func newTestRedis(t *testing.T, window time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return NewRedisStore(client, "test:cooldown", window), mr
}

func TestRedisStore_CooldownWindow(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t, 2*time.Hour)
	defer store.Close()

	t0 := time.UnixMilli(1_700_000_000_000)

	cooling, err := store.IsCoolingDown(ctx, "AAPL", models.DirectionPositive, t0)
	if err != nil || cooling {
		t.Fatalf("fresh pair cooling = %v, %v", cooling, err)
	}

	if err := store.RecordFired(ctx, "AAPL", models.DirectionPositive, t0); err != nil {
		t.Fatalf("RecordFired: %v", err)
	}

	cases := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{time.Minute, true},
		{2*time.Hour - time.Millisecond, true},
		{2 * time.Hour, false},
		{3 * time.Hour, false},
	}
	for _, c := range cases {
		got, err := store.IsCoolingDown(ctx, "AAPL", models.DirectionPositive, t0.Add(c.offset))
		if err != nil {
			t.Fatalf("IsCoolingDown(+%v): %v", c.offset, err)
		}
		if got != c.want {
			t.Errorf("IsCoolingDown(+%v) = %v, want %v", c.offset, got, c.want)
		}
	}

	other, _ := store.IsCoolingDown(ctx, "AAPL", models.DirectionNegative, t0)
	if other {
		t.Error("opposite direction must not share the cooldown")
	}
}

func TestRedisStore_TryReserve(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t, time.Hour)
	defer store.Close()

	now := time.UnixMilli(1_700_000_000_000)

	won, err := store.TryReserve(ctx, "MSFT", models.DirectionNegative, now)
	if err != nil || !won {
		t.Fatalf("first reserve = %v, %v", won, err)
	}
	won, err = store.TryReserve(ctx, "MSFT", models.DirectionNegative, now.Add(time.Minute))
	if err != nil || won {
		t.Fatalf("second reserve inside window = %v, %v; want false", won, err)
	}

	key := Key("test:cooldown", "MSFT", models.DirectionNegative)
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	// Entry still present but stale relative to the supplied clock.
	won, err = store.TryReserve(ctx, "MSFT", models.DirectionNegative, now.Add(time.Hour))
	if err != nil || !won {
		t.Errorf("reserve after window = %v, %v; want true", won, err)
	}
}

func TestRedisStore_KeyExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t, 30*time.Minute)
	defer store.Close()

	now := time.UnixMilli(1_700_000_000_000)
	if err := store.RecordFired(ctx, "TSLA", models.DirectionPositive, now); err != nil {
		t.Fatalf("RecordFired: %v", err)
	}

	mr.FastForward(31 * time.Minute)

	cooling, err := store.IsCoolingDown(ctx, "TSLA", models.DirectionPositive, now)
	if err != nil || cooling {
		t.Errorf("expired key cooling = %v, %v", cooling, err)
	}
}

func TestRedisStore_UnavailableWrapsSentinel(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t, time.Hour)
	defer store.Close()
	mr.Close()

	_, err := store.IsCoolingDown(ctx, "AAPL", models.DirectionPositive, time.Now())
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("IsCoolingDown error = %v, want ErrStoreUnavailable", err)
	}
	_, err = store.TryReserve(ctx, "AAPL", models.DirectionPositive, time.Now())
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("TryReserve error = %v, want ErrStoreUnavailable", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("Ping error = %v, want ErrStoreUnavailable", err)
	}
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := DialRedis(context.Background(), "redis://"+mr.Addr()+"/0", utils.RetryConfig{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("DialRedis: %v", err)
	}
	client.Close()

	if _, err := DialRedis(context.Background(), "://bad", utils.RetryConfig{MaxAttempts: 1}); err == nil {
		t.Error("expected parse error")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	retry := utils.RetryConfig{MaxAttempts: 1}
	mr := miniredis.RunT(t)

	st, err := Open(ctx, config.CooldownConfig{Driver: "redis", RedisURL: "redis://" + mr.Addr(), KeyPrefix: "p"}, time.Hour, retry)
	if err != nil {
		t.Fatalf("Open(redis): %v", err)
	}
	if _, ok := st.(*RedisStore); !ok {
		t.Errorf("Open(redis) = %T", st)
	}
	st.Close()

	st, err = Open(ctx, config.CooldownConfig{Driver: "memory"}, time.Hour, retry)
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T", st)
	}

	if _, err := Open(ctx, config.CooldownConfig{Driver: "etcd"}, time.Hour, retry); !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Open(etcd) error = %v", err)
	}
}
