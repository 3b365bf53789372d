package cli

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/cooldown"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/metrics"
	"sentiment-alerts/internal/notify"
	"sentiment-alerts/internal/resilience"
	"sentiment-alerts/internal/scheduler"
	"sentiment-alerts/internal/sentiment"
	"sentiment-alerts/internal/store"
	"sentiment-alerts/pkg/utils"
)

// pipeline owns the stores and collaborators behind one scheduler.
type pipeline struct {
	metrics   *metrics.Metrics
	source    sentiment.Source
	cooldown  cooldown.Store
	history   store.HistoryStore
	channel   notify.Channel
	scheduler *scheduler.Scheduler
}

// newPipeline connects the stores and builds the scheduler. Stores opened
// before a failure are closed.
func newPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pipeline, error) {
	p := &pipeline{metrics: metrics.New()}

	src, err := sentiment.New(cfg.Source, logger, func(name string, from, to resilience.CircuitState) {
		p.metrics.SetBreakerState(name, string(to))
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "sentiment source")
	}
	p.source = src

	channel, err := notify.New(cfg.Notifications, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "notification channel")
	}
	p.channel = channel

	retry := utils.DefaultRetryConfig()

	p.cooldown, err = cooldown.Open(ctx, cfg.Cooldown, cfg.Alerts.CooldownWindow(), retry)
	if err != nil {
		return nil, apperrors.Wrap(err, "cooldown store")
	}
	logger.Debug().Str("driver", cfg.Cooldown.Driver).Msg("Cooldown store ready")

	p.history, err = store.Open(ctx, cfg.History, retry)
	if err != nil {
		p.cooldown.Close()
		return nil, apperrors.Wrap(err, "history store")
	}
	logger.Debug().Str("driver", cfg.History.Driver).Msg("History store ready")

	p.scheduler = scheduler.New(scheduler.SettingsFrom(cfg), scheduler.Dependencies{
		Source:   p.source,
		Cooldown: p.cooldown,
		History:  p.history,
		Channel:  p.channel,
		Metrics:  p.metrics,
	}, logger)
	return p, nil
}

// healthMonitor registers the store, cycle age and circuit checks.
func (p *pipeline) healthMonitor(cfg *config.Config, logger zerolog.Logger) *resilience.HealthMonitor {
	maxAge := cfg.Server.MaxCycleAge
	if maxAge <= 0 {
		maxAge = 3 * cfg.Schedule.Interval
	}

	hm := resilience.NewHealthMonitor(resilience.DefaultHealthMonitorConfig(), logger)
	hm.RegisterComponent("cooldown_store", resilience.StoreHealthCheck(p.cooldown.Ping))
	hm.RegisterComponent("history_store", resilience.StoreHealthCheck(p.history.Ping))
	hm.RegisterComponent("check_cycle", resilience.CycleAgeCheck(p.scheduler.LastSuccess, time.Now(), maxAge))
	if bs, ok := p.source.(*sentiment.BreakerSource); ok {
		hm.RegisterComponent("sentiment_source", resilience.CircuitHealthCheck(bs.Breakers))
	}
	return hm
}

// Close releases both stores.
func (p *pipeline) Close() error {
	return errors.Join(p.cooldown.Close(), p.history.Close())
}
