package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Sentiment Alerts Configuration

[alerts]
# Tickers to monitor each cycle
tickers = ["AAPL", "MSFT", "NVDA"]
# Alert POSITIVE when score >= positive_threshold
positive_threshold = 0.7
# Alert NEGATIVE when score <= negative_threshold (must be below positive_threshold)
negative_threshold = -0.7
# Minimum minutes between two alerts of the same direction for the same ticker
cooldown_minutes = 120
# Per-cycle worker limit (0 = all tickers in parallel)
max_concurrency = 0
# Persist one check row per ticker per cycle
record_checks = true

[source]
# Sentiment upstream: "http" or "openai"
kind = "http"
base_url = "http://localhost:9000"
path = "/sentiment"
# GET sends ?ticker=, POST sends {"ticker": ...}
method = "GET"
api_key = ""
# Per-ticker fetch timeout
timeout = "30s"
score_min = -1.0
score_max = 1.0
# Model used when kind = "openai"
model = "gpt-4o-mini"
# Open the circuit after this many consecutive failures (0 disables)
breaker_failures = 5
breaker_reset = "2m"

[cooldown]
# "redis" for shared cooldowns across replicas, "memory" for a single process
driver = "memory"
redis_url = "redis://localhost:6379/0"
key_prefix = "sentiment:cooldown"

[history]
# "sqlite" or "postgres"
driver = "sqlite"
dsn = ""
max_open_conns = 10

[notifications]
# Any of: sms, email, sendgrid, webhook, telegram, console
channels = ["console"]
# Shared recipients, used by channels without their own list
recipients = []
# Upper bound for one alert delivery, all recipients included
timeout = "30s"

[notifications.sms]
account_sid = ""
auth_token = ""
from = ""
recipients = []

[notifications.email]
smtp_host = ""
smtp_port = 587
username = ""
password = ""
from = ""
recipients = []

[notifications.sendgrid]
api_key = ""
from = ""
recipients = []

[notifications.webhook]
url = ""

[notifications.telegram]
bot_token = ""
chat_id = ""

[schedule]
# Time between check cycles
interval = "15m"
run_on_start = true

[server]
addr = ":8080"
# /healthz reports unhealthy when the last successful cycle is older than this
max_cycle_age = "1h"

[logging]
level = "info"
file = false
file_path = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	// Restricted permissions: the file holds provider credentials.
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

// WriteTemplate writes the default config template to configDir, refusing to
// overwrite an existing file.
func WriteTemplate(configDir string) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists at %s", path)
	}
	return path, createTemplateConfig(configDir)
}
