package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/pkg/utils"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS alert_records (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		direction TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		recipients TEXT NOT NULL DEFAULT '[]',
		channel TEXT NOT NULL,
		channel_result TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS check_records (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		score DOUBLE PRECISION,
		condition_result TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alert_records_ticker ON alert_records(ticker, created_at);
	CREATE INDEX IF NOT EXISTS idx_check_records_ticker ON check_records(ticker, created_at);
	CREATE INDEX IF NOT EXISTS idx_check_records_cycle ON check_records(cycle_id);
`

// NewPostgresStore wraps an open database handle. The schema is not touched;
// call Migrate when needed.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return newSQLStore(db, dialect{name: "postgres", schema: postgresSchema, rebind: dollarPlaceholders})
}

// OpenPostgresStore connects through pgx, pings with retry and migrates.
func OpenPostgresStore(ctx context.Context, dsn string, maxOpenConns int, retry utils.RetryConfig) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = utils.Retry(ctx, retry, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, apperrors.NewStoreError("postgres", "connect", err)
	}

	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
