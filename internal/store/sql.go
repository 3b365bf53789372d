package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name   string
	schema string
	// rebind converts '?' placeholders to the backend's style.
	rebind func(query string) string
}

func questionMarks(query string) string {
	return query
}

func dollarPlaceholders(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements HistoryStore over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return s.wrap("migrate", err)
	}
	return nil
}

// AppendAlert inserts an alert record.
func (s *SQLStore) AppendAlert(ctx context.Context, rec models.AlertRecord) error {
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO alert_records (id, cycle_id, ticker, direction, score, recipients, channel, channel_result, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.CycleID, rec.Ticker, string(rec.Direction), rec.Score, string(recipients),
		rec.Channel, string(rec.ChannelResult), rec.Detail, dbTime(rec.CreatedAt))
	if err != nil {
		return s.wrap("append_alert", err)
	}
	return nil
}

// AppendCheck inserts a check record.
func (s *SQLStore) AppendCheck(ctx context.Context, rec models.CheckRecord) error {
	var score sql.NullFloat64
	if rec.Score != nil {
		score = sql.NullFloat64{Float64: *rec.Score, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO check_records (id, cycle_id, ticker, score, condition_result, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.CycleID, rec.Ticker, score, string(rec.Condition), string(rec.Outcome), rec.Error, dbTime(rec.CreatedAt))
	if err != nil {
		return s.wrap("append_check", err)
	}
	return nil
}

// ListAlerts retrieves alert records, newest first.
func (s *SQLStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]models.AlertRecord, error) {
	query := "SELECT id, cycle_id, ticker, direction, score, recipients, channel, channel_result, detail, created_at FROM alert_records WHERE 1=1"
	args := []interface{}{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, models.NormalizeTicker(filter.Ticker))
	}
	if filter.Direction != "" {
		query += " AND direction = ?"
		args = append(args, string(filter.Direction))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, dbTime(filter.Since))
	}

	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, s.wrap("list_alerts", err)
	}
	defer rows.Close()

	var records []models.AlertRecord
	for rows.Next() {
		var r models.AlertRecord
		var direction, result, recipientsJSON string

		if err := rows.Scan(&r.ID, &r.CycleID, &r.Ticker, &direction, &r.Score, &recipientsJSON,
			&r.Channel, &result, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert record: %w", err)
		}

		r.Direction = models.Direction(direction)
		r.ChannelResult = models.ChannelStatus(result)
		r.CreatedAt = r.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(recipientsJSON), &r.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// ListChecks retrieves check records, newest first.
func (s *SQLStore) ListChecks(ctx context.Context, filter CheckFilter) ([]models.CheckRecord, error) {
	query := "SELECT id, cycle_id, ticker, score, condition_result, outcome, error, created_at FROM check_records WHERE 1=1"
	args := []interface{}{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, models.NormalizeTicker(filter.Ticker))
	}
	if filter.CycleID != "" {
		query += " AND cycle_id = ?"
		args = append(args, filter.CycleID)
	}
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, string(filter.Outcome))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, dbTime(filter.Since))
	}

	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, s.wrap("list_checks", err)
	}
	defer rows.Close()

	var records []models.CheckRecord
	for rows.Next() {
		var r models.CheckRecord
		var score sql.NullFloat64
		var condition, outcome string

		if err := rows.Scan(&r.ID, &r.CycleID, &r.Ticker, &score, &condition, &outcome, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check record: %w", err)
		}

		if score.Valid {
			v := score.Float64
			r.Score = &v
		}
		r.Condition = models.Condition(condition)
		r.Outcome = models.CheckOutcome(outcome)
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.wrap("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) wrap(op string, err error) error {
	return apperrors.NewStoreError(s.dialect.name, op, err)
}

// dbTime normalizes timestamps to UTC at microsecond precision, the finest
// both backends keep.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
