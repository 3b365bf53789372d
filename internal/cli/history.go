package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sentiment-alerts/internal/models"
	"sentiment-alerts/internal/store"
	"sentiment-alerts/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query alert and check history",
		Long:  "Read-only queries over the alert and check records, newest first.",
	}

	cmd.PersistentFlags().String("ticker", "", "filter by ticker")
	cmd.PersistentFlags().String("since", "", "only records newer than a duration (24h, 7d) or RFC3339 time")
	cmd.PersistentFlags().Int("limit", 50, "maximum number of records (0 = all)")

	cmd.AddCommand(newHistoryAlertsCmd(app))
	cmd.AddCommand(newHistoryChecksCmd(app))
	return cmd
}

// historyFlags holds the filters shared by the history subcommands.
type historyFlags struct {
	ticker string
	since  time.Time
	limit  int
}

func parseHistoryFlags(cmd *cobra.Command) (historyFlags, error) {
	ticker, _ := cmd.Flags().GetString("ticker")
	sinceRaw, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")

	since, err := ParseSince(sinceRaw, time.Now())
	if err != nil {
		return historyFlags{}, err
	}
	return historyFlags{
		ticker: models.NormalizeTicker(ticker),
		since:  since,
		limit:  limit,
	}, nil
}

// openHistory opens only the history store; no upstream or channel is needed.
func (app *App) openHistory(cmd *cobra.Command) (store.HistoryStore, error) {
	cfg, err := app.loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cmd.Context(), cfg.History, utils.DefaultRetryConfig())
}

func newHistoryAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List fired alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := parseHistoryFlags(cmd)
			if err != nil {
				return err
			}
			direction, _ := cmd.Flags().GetString("direction")

			hist, err := app.openHistory(cmd)
			if err != nil {
				return err
			}
			defer hist.Close()

			alerts, err := hist.ListAlerts(cmd.Context(), store.AlertFilter{
				Ticker:    flags.ticker,
				Direction: models.Direction(strings.ToUpper(direction)),
				Since:     flags.since,
				Limit:     flags.limit,
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				if alerts == nil {
					alerts = []models.AlertRecord{}
				}
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				output.Dim("No alerts recorded")
				return nil
			}

			table := NewTable(output, "TIME", "TICKER", "DIRECTION", "SCORE", "CHANNEL", "RESULT", "DETAIL")
			for _, a := range alerts {
				table.AddRow(
					FormatDateTime(a.CreatedAt),
					a.Ticker,
					output.Direction(a.Direction),
					FormatScore(a.Score),
					a.Channel,
					output.Status(a.ChannelResult),
					TruncateString(a.Detail, 50),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("direction", "", "filter by direction (POSITIVE, NEGATIVE)")
	return cmd
}

func newHistoryChecksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List per-ticker check records",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := parseHistoryFlags(cmd)
			if err != nil {
				return err
			}
			cycleID, _ := cmd.Flags().GetString("cycle")
			outcome, _ := cmd.Flags().GetString("outcome")

			hist, err := app.openHistory(cmd)
			if err != nil {
				return err
			}
			defer hist.Close()

			checks, err := hist.ListChecks(cmd.Context(), store.CheckFilter{
				Ticker:  flags.ticker,
				CycleID: cycleID,
				Outcome: models.CheckOutcome(strings.ToUpper(outcome)),
				Since:   flags.since,
				Limit:   flags.limit,
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				if checks == nil {
					checks = []models.CheckRecord{}
				}
				return output.JSON(checks)
			}
			if len(checks) == 0 {
				output.Dim("No checks recorded")
				return nil
			}

			table := NewTable(output, "TIME", "TICKER", "SCORE", "CONDITION", "OUTCOME", "ERROR")
			for _, c := range checks {
				table.AddRow(
					FormatDateTime(c.CreatedAt),
					c.Ticker,
					FormatScorePtr(c.Score),
					string(c.Condition),
					output.Outcome(c.Outcome),
					TruncateString(c.Error, 50),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("cycle", "", "filter by cycle ID")
	cmd.Flags().String("outcome", "", "filter by outcome (NO_ALERT, SUPPRESSED, ALERTED, FAILED)")
	return cmd
}
