package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
)

// smtpTimeout caps one SMTP exchange when the caller sets no earlier deadline.
const smtpTimeout = 30 * time.Second

// SMTPEmail sends alerts via email using SMTP.
type SMTPEmail struct {
	smtpHost   string
	smtpPort   int
	username   string
	password   string
	from       string
	recipients []string
	dialer     net.Dialer
	timeout    time.Duration
}

// NewSMTPEmail creates a new SMTPEmail channel.
func NewSMTPEmail(cfg config.EmailConfig) *SMTPEmail {
	return &SMTPEmail{
		smtpHost:   cfg.SMTPHost,
		smtpPort:   cfg.SMTPPort,
		username:   cfg.Username,
		password:   cfg.Password,
		from:       cfg.From,
		recipients: cfg.Recipients,
		dialer:     net.Dialer{Timeout: 10 * time.Second},
		timeout:    smtpTimeout,
	}
}

// Name returns the name of the channel.
func (e *SMTPEmail) Name() string {
	return config.ChannelEmail
}

// Send delivers one message addressed to every recipient.
func (e *SMTPEmail) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	to := pick(e.recipients, recipients)
	if len(to) == 0 {
		return failure(e.Name(), nil, "no recipients")
	}

	m := FormatMessage(dir, ticker, score, time.Now())
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		e.from, strings.Join(to, ", "), m.Subject, m.Body())

	if err := e.deliver(ctx, to, []byte(msg)); err != nil {
		return failure(e.Name(), to, "%v", err)
	}
	return success(e.Name(), to, fmt.Sprintf("sent to %d recipients", len(to)))
}

// deliver runs the SMTP exchange. Port 465 uses implicit TLS; otherwise
// STARTTLS is used when the server offers it.
func (e *SMTPEmail) deliver(ctx context.Context, to []string, msg []byte) error {
	addr := net.JoinHostPort(e.smtpHost, strconv.Itoa(e.smtpPort))
	tlsConfig := &tls.Config{ServerName: e.smtpHost}

	var conn net.Conn
	var err error
	if e.smtpPort == 465 {
		td := tls.Dialer{NetDialer: &e.dialer, Config: tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = e.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(e.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting SMTP deadline: %w", err)
	}
	// Cancellation unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if e.smtpPort != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if e.username != "" && e.password != "" {
		if err := client.Auth(smtp.PlainAuth("", e.username, e.password, e.smtpHost)); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return apperrors.Wrapf(err, "SMTP RCPT command failed for %s", rcpt)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

const sendGridBaseURL = "https://api.sendgrid.com"

// SendGridEmail sends alerts through the SendGrid v3 mail API.
type SendGridEmail struct {
	apiKey     string
	from       string
	baseURL    string
	recipients []string
	client     *http.Client
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// NewSendGridEmail creates a new SendGridEmail channel.
func NewSendGridEmail(cfg config.SendGridConfig) *SendGridEmail {
	base := cfg.BaseURL
	if base == "" {
		base = sendGridBaseURL
	}
	return &SendGridEmail{
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		baseURL:    strings.TrimRight(base, "/"),
		recipients: cfg.Recipients,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the channel.
func (s *SendGridEmail) Name() string {
	return config.ChannelSendGrid
}

// Send posts a single mail with one personalization per recipient.
func (s *SendGridEmail) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	to := pick(s.recipients, recipients)
	if len(to) == 0 {
		return failure(s.Name(), nil, "no recipients")
	}

	m := FormatMessage(dir, ticker, score, time.Now())
	mail := sendGridMail{
		From:    sendGridAddress{Email: s.from},
		Subject: m.Subject,
		Content: []sendGridContent{{Type: "text/plain", Value: m.Body()}},
	}
	for _, addr := range to {
		mail.Personalizations = append(mail.Personalizations, sendGridPersonalization{
			To: []sendGridAddress{{Email: addr}},
		})
	}

	body, err := json.Marshal(mail)
	if err != nil {
		return failure(s.Name(), to, "marshaling sendgrid payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return failure(s.Name(), to, "creating sendgrid request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return failure(s.Name(), to, "sending mail: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return failure(s.Name(), to, "sendgrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return success(s.Name(), to, fmt.Sprintf("accepted for %d recipients", len(to)))
}
