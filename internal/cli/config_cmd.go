package cli

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/logging"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View, validate and initialize the configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			output := NewOutput(cmd)
			masked := redactConfig(cfg)
			if output.IsJSON() {
				return output.JSON(masked)
			}
			showConfig(output, masked)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.configDir()
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"dir":  dir,
					"file": filepath.Join(dir, "config.toml"),
				})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.loadConfig(); err != nil {
				if output.IsJSON() {
					output.JSON(map[string]interface{}{"valid": false, "error": err.Error()})
				} else {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config.toml template",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path, err := config.WriteTemplate(app.configDir())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Success("Wrote %s", path)
			output.Dim("Edit tickers, source and notification settings before running.")
			return nil
		},
	})

	return cmd
}

// redactConfig returns a copy with credentials masked.
func redactConfig(cfg *config.Config) config.Config {
	c := *cfg
	n := &c.Notifications

	c.Source.APIKey = mask(c.Source.APIKey)
	c.Cooldown.RedisURL = redactURL(c.Cooldown.RedisURL)
	c.History.DSN = redactURL(c.History.DSN)
	n.SMS.AuthToken = mask(n.SMS.AuthToken)
	n.Email.Password = mask(n.Email.Password)
	n.SendGrid.APIKey = mask(n.SendGrid.APIKey)
	n.Telegram.BotToken = mask(n.Telegram.BotToken)

	n.Recipients = logging.MaskRecipients(n.Recipients)
	n.SMS.Recipients = logging.MaskRecipients(n.SMS.Recipients)
	n.Email.Recipients = logging.MaskRecipients(n.Email.Recipients)
	n.SendGrid.Recipients = logging.MaskRecipients(n.SendGrid.Recipients)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return logging.MaskSecret(s)
}

// redactURL hides the password of a URL-style DSN and any key=value secrets.
func redactURL(s string) string {
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			return u.Redacted()
		}
	}
	return logging.Redact(s)
}

func showConfig(output *Output, cfg config.Config) {
	output.Heading("Alerts")
	output.Printf("  Tickers:          %s\n", strings.Join(cfg.Alerts.Tickers, ", "))
	output.Printf("  Positive:         %s\n", FormatScore(cfg.Alerts.PositiveThreshold))
	output.Printf("  Negative:         %s\n", FormatScore(cfg.Alerts.NegativeThreshold))
	output.Printf("  Cooldown:         %d min\n", cfg.Alerts.CooldownMinutes)
	output.Printf("  Max Concurrency:  %d\n", cfg.Alerts.MaxConcurrency)
	output.Printf("  Record Checks:    %v\n", cfg.Alerts.RecordChecks)
	output.Println()

	output.Heading("Sentiment Source")
	output.Printf("  Kind:             %s\n", cfg.Source.Kind)
	if cfg.Source.Kind == "openai" {
		output.Printf("  Model:            %s\n", cfg.Source.Model)
	} else {
		output.Printf("  Endpoint:         %s %s%s\n", cfg.Source.Method, cfg.Source.BaseURL, cfg.Source.Path)
	}
	output.Printf("  API Key:          %s\n", cfg.Source.APIKey)
	output.Printf("  Timeout:          %s\n", cfg.Source.Timeout)
	output.Printf("  Score Range:      [%g, %g]\n", cfg.Source.ScoreMin, cfg.Source.ScoreMax)
	output.Printf("  Circuit Breaker:  %d failures, %s reset\n", cfg.Source.BreakerFailures, cfg.Source.BreakerReset)
	output.Println()

	output.Heading("Stores")
	output.Printf("  Cooldown:         %s %s\n", cfg.Cooldown.Driver, cfg.Cooldown.RedisURL)
	output.Printf("  History:          %s %s\n", cfg.History.Driver, cfg.History.DSN)
	output.Println()

	output.Heading("Notifications")
	output.Printf("  Channels:         %s\n", strings.Join(cfg.Notifications.Channels, ", "))
	output.Printf("  Recipients:       %s\n", strings.Join(cfg.Notifications.Recipients, ", "))
	output.Println()

	output.Heading("Schedule")
	output.Printf("  Interval:         %s\n", cfg.Schedule.Interval)
	output.Printf("  Run On Start:     %v\n", cfg.Schedule.RunOnStart)
	output.Printf("  Server:           %s\n", cfg.Server.Addr)
}
