package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/logging"
	"sentiment-alerts/internal/models"
)

// Webhook posts alerts as JSON to an HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a new Webhook channel.
func NewWebhook(cfg config.WebhookConfig) *Webhook {
	return &Webhook{
		url: cfg.URL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the channel.
func (w *Webhook) Name() string {
	return config.ChannelWebhook
}

// Send posts the alert payload.
func (w *Webhook) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	m := FormatMessage(dir, ticker, score, time.Now())
	payload := map[string]interface{}{
		"type":       "sentiment_alert",
		"ticker":     m.Ticker,
		"direction":  m.Direction,
		"score":      m.Score,
		"message":    m.Text,
		"recipients": recipients,
		"timestamp":  m.Timestamp.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(w.Name(), nil, "marshaling webhook payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return failure(w.Name(), nil, "creating webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SentimentAlerts/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return failure(w.Name(), nil, "sending webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(w.Name(), nil, "webhook returned status %d", resp.StatusCode)
	}
	return success(w.Name(), []string{w.url}, "")
}

const telegramBaseURL = "https://api.telegram.org"

// Telegram sends alerts via a Telegram bot.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegram creates a new Telegram channel.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	base := cfg.BaseURL
	if base == "" {
		base = telegramBaseURL
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the channel.
func (t *Telegram) Name() string {
	return config.ChannelTelegram
}

// Send posts the alert to the configured chat.
func (t *Telegram) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	m := FormatMessage(dir, ticker, score, time.Now())
	chat := []string{t.chatID}

	// HTML parse mode
	text := fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(m.Subject), escapeHTML(m.Text))
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(t.Name(), chat, "marshaling telegram payload: %v", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(t.Name(), chat, "creating telegram request: %s", t.scrub(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return failure(t.Name(), chat, "sending telegram message: %s", t.scrub(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(t.Name(), chat, "telegram API returned status %d", resp.StatusCode)
	}
	return success(t.Name(), chat, "")
}

// scrub masks the bot token, which url.Error embeds via the request URL.
func (t *Telegram) scrub(err error) string {
	if t.botToken == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), t.botToken, logging.MaskSecret(t.botToken))
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// Console writes alerts to the log. Always succeeds.
type Console struct {
	logger zerolog.Logger
}

// NewConsole creates a new Console channel.
func NewConsole(logger zerolog.Logger) *Console {
	return &Console{logger: logger}
}

// Name returns the name of the channel.
func (c *Console) Name() string {
	return config.ChannelConsole
}

// Send logs the alert.
func (c *Console) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	m := FormatMessage(dir, ticker, score, time.Now())
	logger := logging.WithComponent(logging.FromContext(ctx, c.logger), "console_channel")
	logger.Warn().
		Str("ticker", ticker).
		Str("direction", string(dir)).
		Float64("score", score).
		Strs("recipients", logging.MaskRecipients(recipients)).
		Msg(m.Text)
	return success(c.Name(), recipients, "")
}
