// Package scheduler runs the per-cycle sentiment check and alert pipeline.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/cooldown"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/logging"
	"sentiment-alerts/internal/metrics"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/internal/notify"
	"sentiment-alerts/internal/sentiment"
	"sentiment-alerts/internal/store"
	"sentiment-alerts/internal/threshold"
)

// DefaultSendTimeout bounds a notification when Settings.SendTimeout is unset.
const DefaultSendTimeout = 30 * time.Second

// Settings is the static part of the pipeline configuration.
type Settings struct {
	Tickers        []string
	Thresholds     threshold.Thresholds
	FetchTimeout   time.Duration
	SendTimeout    time.Duration
	MaxConcurrency int // 0 = one goroutine per ticker
	RecordChecks   bool
	Recipients     []string
}

// SettingsFrom extracts Settings from the loaded configuration.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Tickers: cfg.Alerts.Tickers,
		Thresholds: threshold.Thresholds{
			Positive: cfg.Alerts.PositiveThreshold,
			Negative: cfg.Alerts.NegativeThreshold,
		},
		FetchTimeout:   cfg.Source.Timeout,
		SendTimeout:    cfg.Notifications.Timeout,
		MaxConcurrency: cfg.Alerts.MaxConcurrency,
		RecordChecks:   cfg.Alerts.RecordChecks,
		Recipients:     cfg.Notifications.Recipients,
	}
}

// Dependencies are the collaborators injected into the scheduler.
// Metrics may be nil.
type Dependencies struct {
	Source   sentiment.Source
	Cooldown cooldown.Store
	History  store.HistoryStore
	Channel  notify.Channel
	Metrics  *metrics.Metrics
}

// Scheduler evaluates every configured ticker once per cycle.
type Scheduler struct {
	settings Settings
	deps     Dependencies
	base     zerolog.Logger
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string

	inFlight sync.Mutex

	mu          sync.RWMutex
	lastSuccess time.Time
}

// New creates a Scheduler.
func New(settings Settings, deps Dependencies, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		settings: settings,
		deps:     deps,
		base:     logger,
		logger:   logging.WithComponent(logger, "scheduler"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// LastSuccess returns the finish time of the last cycle that fetched at
// least one ticker, or the zero time if there has been none.
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// RunCycle checks every ticker and returns the cycle summary. Per-ticker
// failures are reported in the summary, never as an error. The error is
// ErrCycleInFlight when another cycle holds the guard, or a configuration
// error when there is nothing to check.
func (s *Scheduler) RunCycle(ctx context.Context) (models.CycleSummary, error) {
	if !s.inFlight.TryLock() {
		s.deps.Metrics.RecordSkippedCycle()
		return models.CycleSummary{}, apperrors.ErrCycleInFlight
	}
	defer s.inFlight.Unlock()

	tickers := s.settings.Tickers
	if len(tickers) == 0 {
		return models.CycleSummary{}, apperrors.NewValidationError("alerts.tickers", tickers, "at least one ticker is required")
	}

	summary := models.CycleSummary{
		CycleID:   s.newID(),
		StartedAt: s.now(),
	}
	logger := logging.WithCycle(s.logger, summary.CycleID)
	logger.Debug().Int("tickers", len(tickers)).Msg("Starting check cycle")

	workers := s.settings.MaxConcurrency
	if workers <= 0 || workers > len(tickers) {
		workers = len(tickers)
	}

	results := make([]models.TickerResult, len(tickers))
	p := pool.New().WithMaxGoroutines(workers)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		p.Go(func() {
			results[i] = s.checkTicker(ctx, logger, summary.CycleID, ticker)
		})
	}
	p.Wait()

	for _, r := range results {
		summary.Add(r)
	}
	summary.FinishedAt = s.now()

	if summary.Checked > 0 {
		s.mu.Lock()
		s.lastSuccess = summary.FinishedAt
		s.mu.Unlock()
	}

	s.deps.Metrics.ObserveCycle(summary)
	logging.LogCycle(logger, summary.CycleID, summary.Checked, summary.Alerted, summary.Suppressed, summary.Failed, summary.Duration())
	return summary, nil
}

// checkTicker runs fetch, evaluate, cooldown, notify and record for one
// ticker. It never panics; any failure ends in OutcomeFailed.
func (s *Scheduler) checkTicker(ctx context.Context, logger zerolog.Logger, cycleID, ticker string) (res models.TickerResult) {
	logger = logging.WithTicker(logger, ticker)
	ctx = logging.WithLogger(ctx, logging.WithTicker(logging.WithCycle(s.base, cycleID), ticker))
	start := time.Now()
	res.Ticker = ticker
	res.Condition = models.ConditionNone

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Ticker check panicked")
			res.Outcome = models.OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			s.recordCheck(ctx, logger, cycleID, res)
		}
		res.Duration = time.Since(start)
	}()

	// Fetch
	fetchCtx, cancel := context.WithTimeout(ctx, s.settings.FetchTimeout)
	fetchStart := time.Now()
	reading, err := s.deps.Source.Fetch(fetchCtx, ticker)
	cancel()
	s.deps.Metrics.ObserveFetch(time.Since(fetchStart))
	if err != nil {
		return s.fail(ctx, logger, cycleID, res, "fetch", err)
	}
	score := reading.Score
	res.Score = &score

	// Evaluate
	res.Condition = s.settings.Thresholds.Evaluate(score)
	dir, alert := res.Condition.Direction()
	if !alert {
		res.Outcome = models.OutcomeNoAlert
		return s.done(ctx, logger, cycleID, res)
	}

	// Cooldown. The read-only check keeps an ordinary repeat apart from a
	// reservation lost to another worker in the logs; TryReserve decides.
	now := s.now()
	cooling, err := s.deps.Cooldown.IsCoolingDown(ctx, ticker, dir, now)
	if err != nil {
		return s.fail(ctx, logger, cycleID, res, "cooldown check", err)
	}
	if cooling {
		res.Outcome = models.OutcomeSuppressed
		return s.done(ctx, logger, cycleID, res)
	}

	reserved, err := s.deps.Cooldown.TryReserve(ctx, ticker, dir, now)
	if err != nil {
		return s.fail(ctx, logger, cycleID, res, "cooldown reserve", err)
	}
	if !reserved {
		logger.Debug().Str("direction", string(dir)).Msg("Cooldown reserved by another worker")
		res.Outcome = models.OutcomeSuppressed
		return s.done(ctx, logger, cycleID, res)
	}

	// Notify
	sendTimeout := s.settings.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	sendCtx, cancelSend := context.WithTimeout(ctx, sendTimeout)
	result := notify.SafeSend(sendCtx, s.deps.Channel, dir, ticker, score, s.settings.Recipients)
	timedOut := sendCtx.Err() == context.DeadlineExceeded
	cancelSend()
	firedAt := s.now()
	// A failed send still consumes the window.
	if err := s.deps.Cooldown.RecordFired(ctx, ticker, dir, firedAt); err != nil {
		s.deps.Metrics.RecordError(apperrors.Kind(err))
		logger.Error().Err(err).Str("direction", string(dir)).Msg("Failed to record fired alert")
	}

	s.deps.Metrics.RecordAlert(dir, result)
	if !result.OK() {
		failure := apperrors.ErrChannelFailure
		if timedOut {
			failure = apperrors.ErrTimeout
		}
		s.deps.Metrics.RecordError(apperrors.Kind(failure))
		logger.Warn().Str("channel", result.Channel).Str("detail", result.Detail).Msg("Notification failed")
	}
	logging.LogAlert(logger, ticker, string(dir), score, result.Channel, string(result.Status))

	record := models.AlertRecord{
		ID:            s.newID(),
		CycleID:       cycleID,
		Ticker:        ticker,
		Direction:     dir,
		Score:         score,
		Recipients:    result.Recipients,
		Channel:       result.Channel,
		ChannelResult: result.Status,
		Detail:        result.Detail,
		CreatedAt:     firedAt,
	}
	if err := s.deps.History.AppendAlert(ctx, record); err != nil {
		s.deps.Metrics.RecordError(apperrors.Kind(err))
		logger.Error().Err(err).Str("alert_id", record.ID).Msg("Failed to append alert record")
	}

	res.Outcome = models.OutcomeAlerted
	res.Channel = &result
	return s.done(ctx, logger, cycleID, res)
}

func (s *Scheduler) fail(ctx context.Context, logger zerolog.Logger, cycleID string, res models.TickerResult, step string, err error) models.TickerResult {
	s.deps.Metrics.RecordError(apperrors.Kind(err))
	logger.Error().Err(err).Str("step", step).Str("kind", apperrors.Kind(err)).Msg("Ticker check failed")
	res.Outcome = models.OutcomeFailed
	res.Error = err.Error()
	s.recordCheck(ctx, logger, cycleID, res)
	return res
}

func (s *Scheduler) done(ctx context.Context, logger zerolog.Logger, cycleID string, res models.TickerResult) models.TickerResult {
	logging.LogCheck(logger, res.Ticker, *res.Score, string(res.Condition), string(res.Outcome))
	s.recordCheck(ctx, logger, cycleID, res)
	return res
}

// recordCheck appends the CheckRecord when check recording is enabled.
// Errors are logged only.
func (s *Scheduler) recordCheck(ctx context.Context, logger zerolog.Logger, cycleID string, res models.TickerResult) {
	if !s.settings.RecordChecks {
		return
	}
	rec := models.CheckRecord{
		ID:        s.newID(),
		CycleID:   cycleID,
		Ticker:    res.Ticker,
		Score:     res.Score,
		Condition: res.Condition,
		Outcome:   res.Outcome,
		Error:     res.Error,
		CreatedAt: s.now(),
	}
	if err := s.deps.History.AppendCheck(ctx, rec); err != nil {
		s.deps.Metrics.RecordError(apperrors.Kind(err))
		logger.Error().Err(err).Msg("Failed to append check record")
	}
}
