package cli

import (
	"github.com/spf13/cobra"

	"sentiment-alerts/internal/models"
)

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one check cycle and print the summary",
		Long: `Run one check cycle over every configured ticker: fetch sentiment, evaluate
thresholds, send alerts outside the cooldown window and record history.

Per-ticker failures are reported in the summary; the command only fails when
the cycle itself cannot run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := newPipeline(ctx, cfg, app.Logger)
			if err != nil {
				return err
			}
			defer p.Close()

			summary, err := p.scheduler.RunCycle(ctx)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(summary)
			}
			printSummary(output, summary)
			return nil
		},
	}
}

func printSummary(output *Output, s models.CycleSummary) {
	output.Heading("Check cycle %s", s.CycleID)
	output.Dim("Started %s, took %s", FormatDateTime(s.StartedAt), FormatDuration(s.Duration()))
	output.Println()

	table := NewTable(output, "TICKER", "SCORE", "CONDITION", "OUTCOME", "CHANNEL", "DETAIL")
	for _, r := range s.Results {
		channel, detail := "", r.Error
		if r.Channel != nil {
			channel = r.Channel.Channel + " " + output.Status(r.Channel.Status)
			if detail == "" {
				detail = r.Channel.Detail
			}
		}
		table.AddRow(
			r.Ticker,
			FormatScorePtr(r.Score),
			string(r.Condition),
			output.Outcome(r.Outcome),
			channel,
			TruncateString(detail, 60),
		)
	}
	table.Render()
	output.Println()

	output.Printf("Checked: %d  Alerted: %d  Suppressed: %d  Failed: %d\n",
		s.Checked, s.Alerted, s.Suppressed, s.Failed)
	if s.Failed > 0 {
		output.Warning("%d ticker(s) failed this cycle", s.Failed)
	}
}
