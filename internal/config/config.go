// Package config provides configuration management for the sentiment alert service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/internal/threshold"
)

// Config holds all application configuration.
type Config struct {
	Alerts        AlertsConfig       `mapstructure:"alerts"`
	Source        SourceConfig       `mapstructure:"source"`
	Cooldown      CooldownConfig     `mapstructure:"cooldown"`
	History       HistoryConfig      `mapstructure:"history"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Schedule      ScheduleConfig     `mapstructure:"schedule"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AlertsConfig holds the monitored set and threshold policy.
type AlertsConfig struct {
	Tickers           []string `mapstructure:"tickers"`
	PositiveThreshold float64  `mapstructure:"positive_threshold"`
	NegativeThreshold float64  `mapstructure:"negative_threshold"`
	CooldownMinutes   int      `mapstructure:"cooldown_minutes"`
	MaxConcurrency    int      `mapstructure:"max_concurrency"` // 0 = all tickers in parallel
	RecordChecks      bool     `mapstructure:"record_checks"`
}

// CooldownWindow returns the cooldown as a duration.
func (a AlertsConfig) CooldownWindow() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// SourceConfig holds the sentiment upstream configuration.
type SourceConfig struct {
	Kind            string        `mapstructure:"kind"` // http, openai
	BaseURL         string        `mapstructure:"base_url"`
	Path            string        `mapstructure:"path"`
	Method          string        `mapstructure:"method"` // GET, POST
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ScoreMin        float64       `mapstructure:"score_min"`
	ScoreMax        float64       `mapstructure:"score_max"`
	Model           string        `mapstructure:"model"`
	BreakerFailures int           `mapstructure:"breaker_failures"` // 0 disables the circuit breaker
	BreakerReset    time.Duration `mapstructure:"breaker_reset"`
}

// CooldownConfig holds the cooldown store configuration.
type CooldownConfig struct {
	Driver    string `mapstructure:"driver"` // redis, memory
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// HistoryConfig holds the history store configuration.
type HistoryConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite, postgres
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Channels   []string       `mapstructure:"channels"` // sms, email, sendgrid, webhook, telegram, console
	Recipients []string       `mapstructure:"recipients"`
	Timeout    time.Duration  `mapstructure:"timeout"` // per-alert send limit
	SMS        SMSConfig      `mapstructure:"sms"`
	Email      EmailConfig    `mapstructure:"email"`
	SendGrid   SendGridConfig `mapstructure:"sendgrid"`
	Webhook    WebhookConfig  `mapstructure:"webhook"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

// SMSConfig holds Twilio SMS configuration.
type SMSConfig struct {
	AccountSID string   `mapstructure:"account_sid"`
	AuthToken  string   `mapstructure:"auth_token"`
	From       string   `mapstructure:"from"`
	BaseURL    string   `mapstructure:"base_url"`
	Recipients []string `mapstructure:"recipients"`
}

// EmailConfig holds SMTP email configuration.
type EmailConfig struct {
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

// SendGridConfig holds SendGrid email configuration.
type SendGridConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	From       string   `mapstructure:"from"`
	BaseURL    string   `mapstructure:"base_url"`
	Recipients []string `mapstructure:"recipients"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	BaseURL  string `mapstructure:"base_url"`
}

// ScheduleConfig holds the trigger configuration.
type ScheduleConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// ServerConfig holds the health/metrics HTTP server configuration.
type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	MaxCycleAge time.Duration `mapstructure:"max_cycle_age"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// Known channel names.
const (
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
	ChannelSendGrid = "sendgrid"
	ChannelWebhook  = "webhook"
	ChannelTelegram = "telegram"
	ChannelConsole  = "console"
)

var knownChannels = map[string]bool{
	ChannelSMS:      true,
	ChannelEmail:    true,
	ChannelSendGrid: true,
	ChannelWebhook:  true,
	ChannelTelegram: true,
	ChannelConsole:  true,
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/sentiment-alerts"
	}
	return filepath.Join(home, ".config", "sentiment-alerts")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplateConfig(configDir); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("no config.toml found; a template was written to %s: %w",
				filepath.Join(configDir, "config.toml"), apperrors.ErrConfigInvalid)
		}
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := newViper(filepath.Dir(path))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return decode(v)
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("alerts.positive_threshold", 0.7)
	v.SetDefault("alerts.negative_threshold", -0.7)
	v.SetDefault("alerts.cooldown_minutes", 120)
	v.SetDefault("alerts.max_concurrency", 0)
	v.SetDefault("alerts.record_checks", true)

	v.SetDefault("source.kind", "http")
	v.SetDefault("source.path", "/sentiment")
	v.SetDefault("source.method", "GET")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.score_min", -1.0)
	v.SetDefault("source.score_max", 1.0)
	v.SetDefault("source.model", "gpt-4o-mini")
	v.SetDefault("source.breaker_failures", 5)
	v.SetDefault("source.breaker_reset", "2m")

	v.SetDefault("cooldown.driver", "memory")
	v.SetDefault("cooldown.key_prefix", "sentiment:cooldown")

	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", filepath.Join(DefaultConfigDir(), "history.db"))
	v.SetDefault("history.max_open_conns", 10)

	v.SetDefault("notifications.channels", []string{ChannelConsole})
	v.SetDefault("notifications.timeout", "30s")
	v.SetDefault("notifications.email.smtp_port", 587)

	v.SetDefault("schedule.interval", "15m")
	v.SetDefault("schedule.run_on_start", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_cycle_age", "1h")

	v.SetDefault("logging.level", "info")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALERT_TICKERS"); v != "" {
		cfg.Alerts.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("SENTIMENT_API_KEY"); v != "" {
		cfg.Source.APIKey = v
	}
	if v := os.Getenv("SENTIMENT_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Source.Kind == "openai" {
		cfg.Source.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cooldown.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Notifications.SMS.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Notifications.SMS.AuthToken = v
	}
	if v := os.Getenv("TWILIO_FROM_NUMBER"); v != "" {
		cfg.Notifications.SMS.From = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.Notifications.SendGrid.APIKey = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Notifications.SendGrid.From = v
	}
}

// normalize upper-cases tickers and lower-cases enum-like strings.
func (c *Config) normalize() {
	tickers := make([]string, 0, len(c.Alerts.Tickers))
	for _, t := range c.Alerts.Tickers {
		if n := models.NormalizeTicker(t); n != "" {
			tickers = append(tickers, n)
		}
	}
	c.Alerts.Tickers = tickers

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	c.Source.Method = strings.ToUpper(strings.TrimSpace(c.Source.Method))
	c.Cooldown.Driver = strings.ToLower(strings.TrimSpace(c.Cooldown.Driver))
	c.History.Driver = strings.ToLower(strings.TrimSpace(c.History.Driver))
	if c.History.DSN == "" && c.History.Driver == "sqlite" {
		c.History.DSN = filepath.Join(DefaultConfigDir(), "history.db")
	}
	for i, ch := range c.Notifications.Channels {
		c.Notifications.Channels[i] = strings.ToLower(strings.TrimSpace(ch))
	}
}

// Validate validates the configuration. Every error wraps ErrConfigInvalid.
func (c *Config) Validate() error {
	if len(c.Alerts.Tickers) == 0 {
		return apperrors.NewValidationError("alerts.tickers", c.Alerts.Tickers, "at least one ticker is required")
	}
	seen := make(map[string]bool, len(c.Alerts.Tickers))
	for _, t := range c.Alerts.Tickers {
		if seen[t] {
			return apperrors.NewValidationError("alerts.tickers", t, "duplicate ticker")
		}
		seen[t] = true
	}

	if err := threshold.Validate(c.Alerts.PositiveThreshold, c.Alerts.NegativeThreshold); err != nil {
		return err
	}
	if c.Alerts.CooldownMinutes <= 0 {
		return apperrors.NewValidationError("alerts.cooldown_minutes", c.Alerts.CooldownMinutes, "must be positive")
	}
	if c.Alerts.MaxConcurrency < 0 {
		return apperrors.NewValidationError("alerts.max_concurrency", c.Alerts.MaxConcurrency, "must be non-negative")
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	switch c.Cooldown.Driver {
	case "memory":
	case "redis":
		if c.Cooldown.RedisURL == "" {
			return apperrors.NewValidationError("cooldown.redis_url", "", "required for redis driver")
		}
	default:
		return apperrors.NewValidationError("cooldown.driver", c.Cooldown.Driver, "must be 'redis' or 'memory'")
	}

	switch c.History.Driver {
	case "sqlite", "postgres":
		if c.History.DSN == "" {
			return apperrors.NewValidationError("history.dsn", "", "required")
		}
	default:
		return apperrors.NewValidationError("history.driver", c.History.Driver, "must be 'sqlite' or 'postgres'")
	}

	if err := c.validateNotifications(); err != nil {
		return err
	}

	if c.Schedule.Interval <= 0 {
		return apperrors.NewValidationError("schedule.interval", c.Schedule.Interval, "must be positive")
	}

	return nil
}

func (c *Config) validateSource() error {
	s := c.Source
	if s.Timeout <= 0 {
		return apperrors.NewValidationError("source.timeout", s.Timeout, "must be positive")
	}
	if s.ScoreMin >= s.ScoreMax {
		return apperrors.NewValidationError("source.score_min", s.ScoreMin, "must be below score_max")
	}
	if s.BreakerFailures < 0 {
		return apperrors.NewValidationError("source.breaker_failures", s.BreakerFailures, "must be non-negative")
	}
	switch s.Kind {
	case "http":
		if s.BaseURL == "" {
			return apperrors.NewValidationError("source.base_url", "", "required for http source")
		}
		if s.Method != "GET" && s.Method != "POST" {
			return apperrors.NewValidationError("source.method", s.Method, "must be GET or POST")
		}
	case "openai":
		if s.APIKey == "" {
			return apperrors.NewValidationError("source.api_key", "", "required for openai source")
		}
	default:
		return apperrors.NewValidationError("source.kind", s.Kind, "must be 'http' or 'openai'")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if len(n.Channels) == 0 {
		return apperrors.NewValidationError("notifications.channels", n.Channels, "at least one channel is required")
	}
	if n.Timeout < 0 {
		return apperrors.NewValidationError("notifications.timeout", n.Timeout, "must not be negative")
	}
	for _, ch := range n.Channels {
		if !knownChannels[ch] {
			return apperrors.NewValidationError("notifications.channels", ch, "unknown channel")
		}
		switch ch {
		case ChannelSMS:
			if n.SMS.AccountSID == "" || n.SMS.AuthToken == "" || n.SMS.From == "" {
				return apperrors.NewValidationError("notifications.sms", "", "account_sid, auth_token and from are required")
			}
			if len(c.RecipientsFor(ChannelSMS)) == 0 {
				return apperrors.NewValidationError("notifications.sms.recipients", "", "at least one recipient is required")
			}
		case ChannelEmail:
			if n.Email.SMTPHost == "" || n.Email.From == "" {
				return apperrors.NewValidationError("notifications.email", "", "smtp_host and from are required")
			}
			if len(c.RecipientsFor(ChannelEmail)) == 0 {
				return apperrors.NewValidationError("notifications.email.recipients", "", "at least one recipient is required")
			}
		case ChannelSendGrid:
			if n.SendGrid.APIKey == "" || n.SendGrid.From == "" {
				return apperrors.NewValidationError("notifications.sendgrid", "", "api_key and from are required")
			}
			if len(c.RecipientsFor(ChannelSendGrid)) == 0 {
				return apperrors.NewValidationError("notifications.sendgrid.recipients", "", "at least one recipient is required")
			}
		case ChannelWebhook:
			if n.Webhook.URL == "" {
				return apperrors.NewValidationError("notifications.webhook.url", "", "required")
			}
		case ChannelTelegram:
			if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
				return apperrors.NewValidationError("notifications.telegram", "", "bot_token and chat_id are required")
			}
		}
	}
	return nil
}

// RecipientsFor returns the channel-specific recipient list, falling back to
// the shared notifications.recipients list.
func (c *Config) RecipientsFor(channel string) []string {
	var specific []string
	switch channel {
	case ChannelSMS:
		specific = c.Notifications.SMS.Recipients
	case ChannelEmail:
		specific = c.Notifications.Email.Recipients
	case ChannelSendGrid:
		specific = c.Notifications.SendGrid.Recipients
	}
	if len(specific) > 0 {
		return specific
	}
	return c.Notifications.Recipients
}
