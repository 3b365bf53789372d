package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/logging"
	"sentiment-alerts/internal/models"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioSMS sends alerts as SMS through the Twilio Messages API.
type TwilioSMS struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	recipients []string
	client     *http.Client
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewTwilioSMS creates a new TwilioSMS channel.
func NewTwilioSMS(cfg config.SMSConfig) *TwilioSMS {
	base := cfg.BaseURL
	if base == "" {
		base = twilioBaseURL
	}
	return &TwilioSMS{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    strings.TrimRight(base, "/"),
		recipients: cfg.Recipients,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the channel.
func (s *TwilioSMS) Name() string {
	return config.ChannelSMS
}

// Send posts one message per recipient. Any recipient failure fails the result.
func (s *TwilioSMS) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	to := pick(s.recipients, recipients)
	if len(to) == 0 {
		return failure(s.Name(), nil, "no recipients")
	}

	msg := FormatMessage(dir, ticker, score, time.Now())

	var errs []string
	for _, number := range to {
		if err := s.sendOne(ctx, number, msg.Text); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", logging.MaskRecipient(number), err))
		}
	}

	if len(errs) > 0 {
		return failure(s.Name(), to, "%d/%d recipients failed: %s", len(errs), len(to), strings.Join(errs, "; "))
	}
	return success(s.Name(), to, fmt.Sprintf("sent to %d recipients", len(to)))
}

func (s *TwilioSMS) sendOne(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr twilioError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("twilio status %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("twilio returned status %d", resp.StatusCode)
}
