package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	-- Fired alerts, one row per notification attempt
	CREATE TABLE IF NOT EXISTS alert_records (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		direction TEXT NOT NULL,
		score REAL NOT NULL,
		recipients TEXT NOT NULL DEFAULT '[]',
		channel TEXT NOT NULL,
		channel_result TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	-- One row per ticker per cycle
	CREATE TABLE IF NOT EXISTS check_records (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		score REAL,
		condition_result TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alert_records_ticker ON alert_records(ticker, created_at);
	CREATE INDEX IF NOT EXISTS idx_check_records_ticker ON check_records(ticker, created_at);
	CREATE INDEX IF NOT EXISTS idx_check_records_cycle ON check_records(cycle_id);
`

// NewSQLiteStore opens (creating if needed) a SQLite history database.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := newSQLStore(db, dialect{name: "sqlite", schema: sqliteSchema, rebind: questionMarks})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}
