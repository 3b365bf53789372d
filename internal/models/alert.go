package models

import "time"

// ChannelStatus is the normalized result of a notification attempt.
type ChannelStatus string

const (
	ChannelSuccess ChannelStatus = "SUCCESS"
	ChannelFailed  ChannelStatus = "FAILED"
)

// ChannelResult is returned by every notification channel.
type ChannelResult struct {
	Status     ChannelStatus `json:"status"`
	Channel    string        `json:"channel"`
	Detail     string        `json:"detail,omitempty"`
	Recipients []string      `json:"recipients"`
}

// OK reports whether the send succeeded.
func (r ChannelResult) OK() bool {
	return r.Status == ChannelSuccess
}

// Succeeded builds a successful result.
func Succeeded(channel, detail string) ChannelResult {
	return ChannelResult{Status: ChannelSuccess, Channel: channel, Detail: detail}
}

// Failed builds a failed result.
func Failed(channel, detail string) ChannelResult {
	return ChannelResult{Status: ChannelFailed, Channel: channel, Detail: detail}
}

// AlertRecord is the durable record of a fired alert.
type AlertRecord struct {
	ID            string        `json:"id"`
	CycleID       string        `json:"cycle_id"`
	Ticker        string        `json:"ticker"`
	Direction     Direction     `json:"direction"`
	Score         float64       `json:"score"`
	Recipients    []string      `json:"recipients"`
	Channel       string        `json:"channel"`
	ChannelResult ChannelStatus `json:"channel_result"`
	Detail        string        `json:"detail,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CheckOutcome is the terminal state of one ticker in one cycle.
type CheckOutcome string

const (
	OutcomeNoAlert    CheckOutcome = "NO_ALERT"
	OutcomeSuppressed CheckOutcome = "SUPPRESSED"
	OutcomeAlerted    CheckOutcome = "ALERTED"
	OutcomeFailed     CheckOutcome = "FAILED"
)

// CheckRecord is one row per ticker per cycle.
type CheckRecord struct {
	ID        string       `json:"id"`
	CycleID   string       `json:"cycle_id"`
	Ticker    string       `json:"ticker"`
	Score     *float64     `json:"score"` // nil when the fetch failed
	Condition Condition    `json:"condition"`
	Outcome   CheckOutcome `json:"outcome"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// TickerResult is the per-ticker outcome reported in a cycle summary.
type TickerResult struct {
	Ticker    string         `json:"ticker"`
	Score     *float64       `json:"score"`
	Condition Condition      `json:"condition"`
	Outcome   CheckOutcome   `json:"outcome"`
	Channel   *ChannelResult `json:"channel,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
}

// CycleSummary aggregates one pass over all configured tickers.
type CycleSummary struct {
	CycleID    string         `json:"cycle_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Checked    int            `json:"checked"`
	Alerted    int            `json:"alerted"`
	Suppressed int            `json:"suppressed"`
	Failed     int            `json:"failed"`
	Results    []TickerResult `json:"results"`
}

// Duration returns how long the cycle took.
func (s CycleSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Add folds a ticker result into the counters.
func (s *CycleSummary) Add(r TickerResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeFailed:
		s.Failed++
	case OutcomeAlerted:
		s.Alerted++
	case OutcomeSuppressed:
		s.Suppressed++
	}
	if r.Score != nil {
		s.Checked++
	}
}
