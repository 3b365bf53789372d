// Package cooldown tracks when each (ticker, direction) pair last alerted so the
// same condition does not re-alert inside the cooldown window.
package cooldown

import (
	"context"
	"strings"
	"time"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/pkg/utils"
)

// Store defines the cooldown persistence contract.
//
// IsCoolingDown is true iff a fire was recorded at t with t <= now < t+window.
// TryReserve records now only if the pair is not cooling down and reports
// whether it did; the check and the write are atomic.
// RecordFired overwrites the entry unconditionally.
// Backend failures are returned wrapped in errors.ErrStoreUnavailable.
type Store interface {
	IsCoolingDown(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error)
	TryReserve(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error)
	RecordFired(ctx context.Context, ticker string, dir models.Direction, now time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// Key builds the storage key for a pair.
func Key(prefix, ticker string, dir models.Direction) string {
	parts := []string{models.NormalizeTicker(ticker), string(dir)}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, ":")
}

// cooling applies the window rule to a recorded fire time. A fire time in the
// future (clock skew between replicas) counts as cooling.
func cooling(firedAt, now time.Time, window time.Duration) bool {
	return now.Sub(firedAt) < window
}

// Open builds the configured store. Redis is pinged with retry before it is
// returned.
func Open(ctx context.Context, cfg config.CooldownConfig, window time.Duration, retry utils.RetryConfig) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(window), nil
	case "redis":
		client, err := DialRedis(ctx, cfg.RedisURL, retry)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.KeyPrefix, window), nil
	default:
		return nil, apperrors.NewValidationError("cooldown.driver", cfg.Driver, "must be 'redis' or 'memory'")
	}
}
