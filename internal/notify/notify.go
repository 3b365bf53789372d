// Package notify delivers sentiment alerts over SMS, email, webhooks and chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
)

// Channel defines the interface for a notification channel.
//
// Send never returns an error: every failure is reported as a FAILED result
// with a human-readable detail. recipients is the shared list; a channel that
// was configured with its own recipients uses those instead.
type Channel interface {
	Name() string
	Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult
}

// Message is the rendered alert text.
type Message struct {
	Direction models.Direction
	Ticker    string
	Score     float64
	Subject   string
	Text      string
	Timestamp time.Time
}

// FormatMessage renders the alert text shared by all channels.
func FormatMessage(dir models.Direction, ticker string, score float64, at time.Time) Message {
	text := fmt.Sprintf("[%s] %s sentiment %.2f crossed %s threshold",
		dir, ticker, score, strings.ToLower(string(dir)))
	return Message{
		Direction: dir,
		Ticker:    ticker,
		Score:     score,
		Subject:   fmt.Sprintf("[%s] %s sentiment alert", dir, ticker),
		Text:      text,
		Timestamp: at,
	}
}

// Body is the long form used by email channels.
func (m Message) Body() string {
	return fmt.Sprintf("%s\n\nTicker: %s\nDirection: %s\nScore: %.4f\nTime: %s\n",
		m.Text, m.Ticker, m.Direction, m.Score, m.Timestamp.UTC().Format(time.RFC3339))
}

// SafeSend calls ch.Send and converts a panic into a FAILED result.
func SafeSend(ctx context.Context, ch Channel, dir models.Direction, ticker string, score float64, recipients []string) (result models.ChannelResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.Failed(ch.Name(), fmt.Sprintf("%v: panic: %v", apperrors.ErrChannelFailure, r))
			result.Recipients = recipients
		}
	}()
	return ch.Send(ctx, dir, ticker, score, recipients)
}

// New builds the channel set named in cfg.Channels. A single entry is
// returned as-is; several are wrapped in a Multi.
func New(cfg config.NotificationConfig, logger zerolog.Logger) (Channel, error) {
	channels := make([]Channel, 0, len(cfg.Channels))

	for _, name := range cfg.Channels {
		switch name {
		case config.ChannelSMS:
			channels = append(channels, NewTwilioSMS(cfg.SMS))
		case config.ChannelEmail:
			channels = append(channels, NewSMTPEmail(cfg.Email))
		case config.ChannelSendGrid:
			channels = append(channels, NewSendGridEmail(cfg.SendGrid))
		case config.ChannelWebhook:
			channels = append(channels, NewWebhook(cfg.Webhook))
		case config.ChannelTelegram:
			channels = append(channels, NewTelegram(cfg.Telegram))
		case config.ChannelConsole:
			channels = append(channels, NewConsole(logger))
		default:
			return nil, apperrors.NewValidationError("notifications.channels", name, "unknown channel")
		}
	}

	switch len(channels) {
	case 0:
		return nil, apperrors.NewValidationError("notifications.channels", cfg.Channels, "at least one channel is required")
	case 1:
		return channels[0], nil
	default:
		return NewMulti(channels...), nil
	}
}

// pick returns own when configured, otherwise the shared list.
func pick(own, shared []string) []string {
	if len(own) > 0 {
		return own
	}
	return shared
}

// failure builds a FAILED result tagged with the channel failure sentinel.
func failure(channel string, recipients []string, format string, args ...interface{}) models.ChannelResult {
	r := models.Failed(channel, fmt.Sprintf("%v: %s", apperrors.ErrChannelFailure, fmt.Sprintf(format, args...)))
	r.Recipients = recipients
	return r
}

func success(channel string, recipients []string, detail string) models.ChannelResult {
	r := models.Succeeded(channel, detail)
	r.Recipients = recipients
	return r
}
