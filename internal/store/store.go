// Package store provides the append-only alert and check history.
package store

import (
	"context"
	"time"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/pkg/utils"
)

// HistoryStore defines the interface for alert/check persistence.
// Records are never updated or deleted through this interface.
type HistoryStore interface {
	AppendAlert(ctx context.Context, rec models.AlertRecord) error
	AppendCheck(ctx context.Context, rec models.CheckRecord) error

	ListAlerts(ctx context.Context, filter AlertFilter) ([]models.AlertRecord, error)
	ListChecks(ctx context.Context, filter CheckFilter) ([]models.CheckRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// AlertFilter represents filters for querying alert records.
type AlertFilter struct {
	Ticker    string
	Direction models.Direction
	Since     time.Time
	Limit     int
}

// CheckFilter represents filters for querying check records.
type CheckFilter struct {
	Ticker  string
	CycleID string
	Outcome models.CheckOutcome
	Since   time.Time
	Limit   int
}

// Open connects to the configured history backend.
func Open(ctx context.Context, cfg config.HistoryConfig, retry utils.RetryConfig) (HistoryStore, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLiteStore(cfg.DSN)
	case "postgres":
		return OpenPostgresStore(ctx, cfg.DSN, cfg.MaxOpenConns, retry)
	default:
		return nil, apperrors.NewValidationError("history.driver", cfg.Driver, "must be 'sqlite' or 'postgres'")
	}
}
