package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"sentiment-alerts/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run check cycles on a schedule and serve health/metrics",
		Long: `Run check cycles every schedule.interval until interrupted. An overlapping
trigger is skipped while a cycle is still in flight.

Serves /healthz, /livez, /readyz and /metrics on server.addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			logger := app.Logger
			output := NewOutput(cmd)

			ctx := cmd.Context()
			p, err := newPipeline(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			health := p.healthMonitor(cfg, logger)
			health.Start(ctx)
			defer health.Stop()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           health.Routes(p.metrics.Handler()),
				ReadHeaderTimeout: 5 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			// Cycles are not cancelled by the shutdown signal; Stop waits for them.
			runner := scheduler.NewRunner(p.scheduler, cfg.Schedule, logger)
			if err := runner.Start(context.WithoutCancel(ctx)); err != nil {
				return err
			}

			if !output.IsJSON() {
				output.Success("Monitoring %d tickers every %s", len(cfg.Alerts.Tickers), cfg.Schedule.Interval)
				output.Dim("Health and metrics on %s", cfg.Server.Addr)
			}

			select {
			case <-ctx.Done():
				logger.Info().Msg("Shutdown requested")
			case err = <-serveErr:
				logger.Error().Err(err).Msg("HTTP server failed")
			}

			runner.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				logger.Warn().Err(serr).Msg("HTTP server shutdown")
			}
			return err
		},
	}
}
