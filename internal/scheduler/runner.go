package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/logging"
	"sentiment-alerts/internal/models"
)

// CycleRunner is the single entry point the trigger invokes.
type CycleRunner interface {
	RunCycle(ctx context.Context) (models.CycleSummary, error)
}

// Runner fires RunCycle on a fixed interval. Overlapping triggers are
// dropped by the scheduler's in-flight guard, not queued.
type Runner struct {
	cycles     CycleRunner
	interval   time.Duration
	runOnStart bool
	cron       *gocron.Scheduler
	logger     zerolog.Logger

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// NewRunner creates a Runner for cfg.
func NewRunner(cycles CycleRunner, cfg config.ScheduleConfig, logger zerolog.Logger) *Runner {
	return &Runner{
		cycles:     cycles,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		cron:       gocron.NewScheduler(time.UTC),
		logger:     logging.WithComponent(logger, "runner"),
	}
}

// Start registers the job and starts the cron asynchronously. Cycles run
// with ctx.
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return apperrors.NewValidationError("schedule.interval", r.interval, "must be positive")
	}

	job := r.cron.Every(r.interval)
	if !r.runOnStart {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(r.trigger, ctx); err != nil {
		return apperrors.Wrap(err, "scheduling check cycle")
	}

	r.cron.StartAsync()
	r.logger.Info().
		Dur("interval", r.interval).
		Bool("run_on_start", r.runOnStart).
		Msg("Check cycle scheduled")
	return nil
}

// Stop stops the cron and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cron.Stop()
	r.running.Wait()
	r.logger.Info().Msg("Runner stopped")
}

// trigger runs one cycle and logs the outcome.
func (r *Runner) trigger(ctx context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.running.Add(1)
	r.mu.Unlock()
	defer r.running.Done()

	_, err := r.cycles.RunCycle(ctx)
	switch {
	case apperrors.Is(err, apperrors.ErrCycleInFlight):
		r.logger.Warn().Msg("Previous cycle still running, skipping trigger")
	case err != nil:
		r.logger.Error().Err(err).Msg("Check cycle could not run")
	}
}
