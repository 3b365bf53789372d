package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/cooldown"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/internal/resilience"
	"sentiment-alerts/internal/sentiment"
	"sentiment-alerts/internal/store"
	"sentiment-alerts/internal/threshold"
)

// fakeSource returns fixed scores; tickers in errs fail, tickers in block
// wait for their context.
type fakeSource struct {
	mu      sync.Mutex
	scores  map[string]float64
	errs    map[string]error
	block   map[string]bool
	entered chan string
	release chan struct{}
	calls   map[string]int
}

func newFakeSource(scores map[string]float64) *fakeSource {
	return &fakeSource{
		scores: scores,
		errs:   map[string]error{},
		block:  map[string]bool{},
		calls:  map[string]int{},
	}
}

func (f *fakeSource) setScore(ticker string, score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[ticker] = score
}

func (f *fakeSource) Fetch(ctx context.Context, ticker string) (models.SentimentReading, error) {
	f.mu.Lock()
	f.calls[ticker]++
	score, ok := f.scores[ticker]
	err := f.errs[ticker]
	block := f.block[ticker]
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- ticker
	}
	if release != nil {
		<-release
	}
	if block {
		<-ctx.Done()
		return models.SentimentReading{}, apperrors.NewUpstreamError(ticker, 0,
			fmt.Errorf("%w: %w", apperrors.ErrUpstreamUnavailable, ctx.Err()))
	}
	if err != nil {
		return models.SentimentReading{}, err
	}
	if !ok {
		panic("no score for " + ticker)
	}
	return models.SentimentReading{Ticker: ticker, Score: score, FetchedAt: time.Now()}, nil
}

type sendCall struct {
	dir    models.Direction
	ticker string
	score  float64
}

type fakeChannel struct {
	mu     sync.Mutex
	fail   bool
	panics bool
	hangs  bool // waits for ctx, as a provider that never answers
	calls  []sendCall
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	c.mu.Lock()
	c.calls = append(c.calls, sendCall{dir: dir, ticker: ticker, score: score})
	fail, panics, hangs := c.fail, c.panics, c.hangs
	c.mu.Unlock()

	if panics {
		panic("provider exploded")
	}
	if hangs {
		<-ctx.Done()
		r := models.Failed("fake", ctx.Err().Error())
		r.Recipients = recipients
		return r
	}
	if fail {
		r := models.Failed("fake", "bad recipient")
		r.Recipients = recipients
		return r
	}
	r := models.Succeeded("fake", "")
	r.Recipients = recipients
	return r
}

func (c *fakeChannel) sent() []sendCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sendCall(nil), c.calls...)
}

type fakeHistory struct {
	mu     sync.Mutex
	err    error
	alerts []models.AlertRecord
	checks []models.CheckRecord
}

func (h *fakeHistory) AppendAlert(ctx context.Context, rec models.AlertRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.alerts = append(h.alerts, rec)
	return nil
}

func (h *fakeHistory) AppendCheck(ctx context.Context, rec models.CheckRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.checks = append(h.checks, rec)
	return nil
}

func (h *fakeHistory) ListAlerts(ctx context.Context, filter store.AlertFilter) ([]models.AlertRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.AlertRecord(nil), h.alerts...), nil
}

func (h *fakeHistory) ListChecks(ctx context.Context, filter store.CheckFilter) ([]models.CheckRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.CheckRecord(nil), h.checks...), nil
}

func (h *fakeHistory) Ping(ctx context.Context) error { return nil }
func (h *fakeHistory) Close() error                   { return nil }

func (h *fakeHistory) alertsFor(ticker string) []models.AlertRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.AlertRecord
	for _, a := range h.alerts {
		if a.Ticker == ticker {
			out = append(out, a)
		}
	}
	return out
}

// countingCooldown wraps a store and counts calls.
type countingCooldown struct {
	cooldown.Store
	calls atomic.Int32
	err   error
}

func (c *countingCooldown) IsCoolingDown(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return c.Store.IsCoolingDown(ctx, ticker, dir, now)
}

func (c *countingCooldown) TryReserve(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return c.Store.TryReserve(ctx, ticker, dir, now)
}

func (c *countingCooldown) RecordFired(ctx context.Context, ticker string, dir models.Direction, now time.Time) error {
	c.calls.Add(1)
	if c.err != nil {
		return c.err
	}
	return c.Store.RecordFired(ctx, ticker, dir, now)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	sched    *Scheduler
	source   *fakeSource
	cooldown *countingCooldown
	memory   *cooldown.MemoryStore
	history  *fakeHistory
	channel  *fakeChannel
	clock    *clock
}

func newHarness(t *testing.T, scores map[string]float64, tickers ...string) *harness {
	t.Helper()
	h := &harness{
		source:  newFakeSource(scores),
		memory:  cooldown.NewMemoryStore(120 * time.Minute),
		history: &fakeHistory{},
		channel: &fakeChannel{},
		clock:   &clock{t: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
	h.cooldown = &countingCooldown{Store: h.memory}

	h.sched = New(Settings{
		Tickers:      tickers,
		Thresholds:   threshold.Thresholds{Positive: 0.7, Negative: -0.7},
		FetchTimeout: 50 * time.Millisecond,
		RecordChecks: true,
		Recipients:   []string{"+15550001111"},
	}, Dependencies{
		Source:   h.source,
		Cooldown: h.cooldown,
		History:  h.history,
		Channel:  h.channel,
	}, zerolog.Nop())
	h.sched.now = h.clock.Now
	return h
}

func resultFor(t *testing.T, s models.CycleSummary, ticker string) models.TickerResult {
	t.Helper()
	for _, r := range s.Results {
		if r.Ticker == ticker {
			return r
		}
	}
	t.Fatalf("no result for %s", ticker)
	return models.TickerResult{}
}

func TestRunCycle_FirstPositiveAlerts(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL")

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	r := resultFor(t, summary, "AAPL")
	if r.Condition != models.ConditionPositive || r.Outcome != models.OutcomeAlerted {
		t.Errorf("result = %s/%s, want POSITIVE/ALERTED", r.Condition, r.Outcome)
	}
	if sent := h.channel.sent(); len(sent) != 1 || sent[0].dir != models.DirectionPositive || sent[0].score != 0.85 {
		t.Errorf("sends = %+v, want one POSITIVE send", sent)
	}
	cooling, err := h.memory.IsCoolingDown(context.Background(), "AAPL", models.DirectionPositive, h.clock.Now())
	if err != nil || !cooling {
		t.Errorf("IsCoolingDown = %v, %v; want true", cooling, err)
	}

	alerts := h.history.alertsFor("AAPL")
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.ChannelResult != models.ChannelSuccess || a.CycleID != summary.CycleID || a.Recipients[0] != "+15550001111" {
		t.Errorf("alert record = %+v", a)
	}
	if summary.Checked != 1 || summary.Alerted != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if !h.sched.LastSuccess().Equal(summary.FinishedAt) {
		t.Errorf("LastSuccess() = %v, want %v", h.sched.LastSuccess(), summary.FinishedAt)
	}
}

func TestRunCycle_CooldownSuppressesRepeat(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL")
	ctx := context.Background()

	if _, err := h.sched.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(30 * time.Minute)
	h.source.setScore("AAPL", 0.9)
	summary, err := h.sched.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}

	r := resultFor(t, summary, "AAPL")
	if r.Condition != models.ConditionPositive || r.Outcome != models.OutcomeSuppressed {
		t.Errorf("result = %s/%s, want POSITIVE/SUPPRESSED", r.Condition, r.Outcome)
	}
	if n := len(h.channel.sent()); n != 1 {
		t.Errorf("sends = %d, want 1", n)
	}
	if summary.Suppressed != 1 || summary.Alerted != 0 {
		t.Errorf("summary = %+v", summary)
	}

	// After the window the pair alerts again.
	h.clock.Advance(91 * time.Minute)
	if _, err := h.sched.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(h.channel.sent()); n != 2 {
		t.Errorf("sends after window = %d, want 2", n)
	}
}

func TestRunCycle_NoneTouchesNoCooldown(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": -0.5}, "AAPL")

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	r := resultFor(t, summary, "AAPL")
	if r.Condition != models.ConditionNone || r.Outcome != models.OutcomeNoAlert {
		t.Errorf("result = %s/%s, want NONE/NO_ALERT", r.Condition, r.Outcome)
	}
	if n := h.cooldown.calls.Load(); n != 0 {
		t.Errorf("cooldown calls = %d, want 0", n)
	}
	if len(h.channel.sent()) != 0 {
		t.Error("channel should not be called")
	}
	if len(h.history.checks) != 1 || h.history.checks[0].Outcome != models.OutcomeNoAlert {
		t.Errorf("checks = %+v", h.history.checks)
	}
}

func TestRunCycle_TimeoutIsIsolated(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85, "MSFT": -0.9, "GOOG": 0.1}, "AAPL", "X", "MSFT", "GOOG")
	h.source.block["X"] = true

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	x := resultFor(t, summary, "X")
	if x.Outcome != models.OutcomeFailed || x.Score != nil {
		t.Errorf("X result = %+v, want FAILED without score", x)
	}
	if summary.Failed != 1 || summary.Checked != 3 || summary.Alerted != 2 {
		t.Errorf("summary = checked %d alerted %d failed %d", summary.Checked, summary.Alerted, summary.Failed)
	}
	if len(h.history.alertsFor("X")) != 0 {
		t.Error("no alert record expected for X")
	}
	if resultFor(t, summary, "MSFT").Outcome != models.OutcomeAlerted {
		t.Error("MSFT should alert NEGATIVE")
	}
	if len(summary.Results) != 4 {
		t.Errorf("results = %d, want 4", len(summary.Results))
	}
}

func TestRunCycle_FailedSendConsumesCooldown(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL")
	h.channel.fail = true
	ctx := context.Background()

	summary, err := h.sched.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}

	alerts := h.history.alertsFor("AAPL")
	if len(alerts) != 1 || alerts[0].ChannelResult != models.ChannelFailed {
		t.Fatalf("alerts = %+v, want one FAILED record", alerts)
	}
	cooling, err := h.memory.IsCoolingDown(ctx, "AAPL", models.DirectionPositive, h.clock.Now())
	if err != nil || !cooling {
		t.Errorf("cooldown should be active after failed send, got %v, %v", cooling, err)
	}
	r := resultFor(t, summary, "AAPL")
	if r.Channel == nil || r.Channel.OK() {
		t.Errorf("result channel = %+v, want FAILED", r.Channel)
	}

	h.clock.Advance(time.Minute)
	if _, err := h.sched.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(h.channel.sent()); n != 1 {
		t.Errorf("sends = %d, want no retry inside window", n)
	}
}

func TestRunCycle_PanickingChannelStillRecordsCooldown(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL")
	h.channel.panics = true

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resultFor(t, summary, "AAPL").Outcome != models.OutcomeAlerted {
		t.Error("panicking channel should still produce an alert record")
	}
	alerts := h.history.alertsFor("AAPL")
	if len(alerts) != 1 || alerts[0].ChannelResult != models.ChannelFailed {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestRunCycle_CooldownStoreErrorFailsClosed(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85, "MSFT": 0.2}, "AAPL", "MSFT")
	h.cooldown.err = apperrors.NewStoreError("redis", "get", errors.New("connection refused"))

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	r := resultFor(t, summary, "AAPL")
	if r.Outcome != models.OutcomeFailed {
		t.Errorf("AAPL outcome = %s, want FAILED", r.Outcome)
	}
	if len(h.channel.sent()) != 0 {
		t.Error("no notification may be sent when the cooldown store is down")
	}
	if resultFor(t, summary, "MSFT").Outcome != models.OutcomeNoAlert {
		t.Error("MSFT should be unaffected")
	}
	if summary.Failed != 1 || summary.Checked != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunCycle_ReservationLostIsSuppressed(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL")
	h.cooldown.Store = &lostRace{Store: h.memory}

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resultFor(t, summary, "AAPL").Outcome != models.OutcomeSuppressed {
		t.Error("lost reservation should suppress")
	}
	if len(h.channel.sent()) != 0 {
		t.Error("channel should not be called")
	}
}

// lostRace reports not cooling but refuses every reservation, as when
// another replica reserved in between.
type lostRace struct {
	cooldown.Store
}

func (l *lostRace) TryReserve(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	return false, nil
}

func TestRunCycle_HistoryErrorDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL")
	h.history.err = apperrors.NewStoreError("sqlite", "insert", errors.New("disk full"))

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resultFor(t, summary, "AAPL").Outcome != models.OutcomeAlerted {
		t.Error("history failure should not change the outcome")
	}
}

func TestRunCycle_RecordChecksDisabled(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.1}, "AAPL")
	h.sched.settings.RecordChecks = false

	if _, err := h.sched.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(h.history.checks) != 0 {
		t.Errorf("checks = %d, want 0", len(h.history.checks))
	}
}

func TestRunCycle_InvalidResponseAndPanic(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85}, "AAPL", "BAD", "NOSCORE")
	h.source.errs["BAD"] = apperrors.NewUpstreamError("BAD", 200, apperrors.ErrInvalidResponse)

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, ticker := range []string{"BAD", "NOSCORE"} {
		if r := resultFor(t, summary, ticker); r.Outcome != models.OutcomeFailed || r.Error == "" {
			t.Errorf("%s result = %+v, want FAILED with error", ticker, r)
		}
	}
	if summary.Alerted != 1 || summary.Failed != 2 {
		t.Errorf("summary = %+v", summary)
	}

	var failedChecks int
	for _, c := range h.history.checks {
		if c.Outcome == models.OutcomeFailed {
			failedChecks++
			if c.Score != nil {
				t.Errorf("failed check %s has score", c.Ticker)
			}
		}
	}
	if failedChecks != 2 {
		t.Errorf("failed checks = %d, want 2", failedChecks)
	}
}

func TestRunCycle_EmptyTickers(t *testing.T) {
	h := newHarness(t, map[string]float64{})

	_, err := h.sched.RunCycle(context.Background())
	if !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("RunCycle() error = %v, want ErrConfigInvalid", err)
	}
}

func TestRunCycle_InFlightGuard(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.1}, "AAPL")
	h.source.entered = make(chan string, 1)
	h.source.release = make(chan struct{})
	h.sched.settings.FetchTimeout = 5 * time.Second

	done := make(chan error, 1)
	go func() {
		_, err := h.sched.RunCycle(context.Background())
		done <- err
	}()
	<-h.source.entered

	if _, err := h.sched.RunCycle(context.Background()); !errors.Is(err, apperrors.ErrCycleInFlight) {
		t.Errorf("second RunCycle() error = %v, want ErrCycleInFlight", err)
	}

	close(h.source.release)
	if err := <-done; err != nil {
		t.Errorf("first RunCycle() error = %v", err)
	}

	h.source.mu.Lock()
	h.source.entered = nil
	h.source.mu.Unlock()
	if _, err := h.sched.RunCycle(context.Background()); err != nil {
		t.Errorf("RunCycle() after release error = %v", err)
	}
}

func TestRunCycle_BoundedConcurrency(t *testing.T) {
	tickers := []string{"A", "B", "C", "D", "E", "F"}
	scores := map[string]float64{}
	for _, tk := range tickers {
		scores[tk] = 0
	}

	var active, peak atomic.Int32
	src := &trackingSource{active: &active, peak: &peak}
	h := newHarness(t, scores, tickers...)
	h.sched.deps.Source = src
	h.sched.settings.MaxConcurrency = 2

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Checked != len(tickers) {
		t.Errorf("checked = %d, want %d", summary.Checked, len(tickers))
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

type trackingSource struct {
	active *atomic.Int32
	peak   *atomic.Int32
}

func (s *trackingSource) Fetch(ctx context.Context, ticker string) (models.SentimentReading, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return models.SentimentReading{Ticker: ticker, Score: 0}, nil
}

func TestSettingsFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.Alerts.Tickers = []string{"AAPL"}
	cfg.Alerts.PositiveThreshold = 0.6
	cfg.Alerts.NegativeThreshold = -0.4
	cfg.Alerts.MaxConcurrency = 3
	cfg.Source.Timeout = 7 * time.Second
	cfg.Notifications.Recipients = []string{"ops@example.com"}
	cfg.Notifications.Timeout = 9 * time.Second

	s := SettingsFrom(cfg)
	if s.Thresholds.Positive != 0.6 || s.Thresholds.Negative != -0.4 || s.FetchTimeout != 7*time.Second || s.MaxConcurrency != 3 {
		t.Errorf("SettingsFrom() = %+v", s)
	}
	if s.SendTimeout != 9*time.Second {
		t.Errorf("SendTimeout = %v, want 9s", s.SendTimeout)
	}
}

func TestRunCycle_FailingTickersDoNotTripHealthyOnes(t *testing.T) {
	failing := []string{"A", "B", "C", "D", "E"}
	tickers := append(append([]string{}, failing...), "GOOD")
	h := newHarness(t, map[string]float64{"GOOD": 0.9}, tickers...)
	for _, tk := range failing {
		h.source.errs[tk] = apperrors.NewUpstreamError(tk, 503, fmt.Errorf("%w: status 503", apperrors.ErrUpstreamUnavailable))
	}
	h.sched.deps.Source = sentiment.NewBreakerSource(h.source, "sentiment_http", resilience.DefaultCircuitBreakerConfig())
	h.sched.settings.MaxConcurrency = 1

	// Enough cycles to open every failing ticker's circuit and then some.
	for cycle := 0; cycle < 7; cycle++ {
		summary, err := h.sched.RunCycle(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		good := resultFor(t, summary, "GOOD")
		if good.Outcome == models.OutcomeFailed {
			t.Fatalf("cycle %d: GOOD failed: %s", cycle, good.Error)
		}
		if summary.Failed != len(failing) {
			t.Errorf("cycle %d: failed = %d, want %d", cycle, summary.Failed, len(failing))
		}
		h.clock.Advance(3 * time.Hour)
	}

	if n := len(h.channel.sent()); n != 7 {
		t.Errorf("GOOD sends = %d, want one per cycle", n)
	}
	h.source.mu.Lock()
	goodCalls, aCalls := h.source.calls["GOOD"], h.source.calls["A"]
	h.source.mu.Unlock()
	if goodCalls != 7 {
		t.Errorf("GOOD fetched %d times, want 7", goodCalls)
	}
	if aCalls != 5 {
		t.Errorf("A fetched %d times, want 5 before its circuit opened", aCalls)
	}
}

func TestRunCycle_HungChannelIsBounded(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.85, "MSFT": 0.1}, "AAPL", "MSFT")
	h.channel.hangs = true
	h.sched.settings.SendTimeout = 50 * time.Millisecond

	done := make(chan models.CycleSummary, 1)
	go func() {
		summary, err := h.sched.RunCycle(context.Background())
		if err != nil {
			t.Error(err)
		}
		done <- summary
	}()

	var summary models.CycleSummary
	select {
	case summary = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle blocked on a channel that never answers")
	}

	r := resultFor(t, summary, "AAPL")
	if r.Outcome != models.OutcomeAlerted || r.Channel == nil || r.Channel.OK() {
		t.Errorf("AAPL = %+v, want ALERTED with a failed channel result", r)
	}
	if resultFor(t, summary, "MSFT").Outcome != models.OutcomeNoAlert {
		t.Error("MSFT should be unaffected")
	}
	cooling, err := h.memory.IsCoolingDown(context.Background(), "AAPL", models.DirectionPositive, h.clock.Now())
	if err != nil || !cooling {
		t.Errorf("timed out send should consume the window, got %v, %v", cooling, err)
	}

	// The guard is free again for the next trigger.
	if _, err := h.sched.RunCycle(context.Background()); err != nil {
		t.Errorf("next cycle: %v", err)
	}
}

func TestRunCycle_AllFailedKeepsLastSuccess(t *testing.T) {
	h := newHarness(t, map[string]float64{"AAPL": 0.1}, "AAPL")

	summary, err := h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	last := h.sched.LastSuccess()
	if !last.Equal(summary.FinishedAt) {
		t.Fatalf("LastSuccess() = %v, want %v", last, summary.FinishedAt)
	}

	h.source.errs["AAPL"] = apperrors.NewUpstreamError("AAPL", 503, fmt.Errorf("%w: status 503", apperrors.ErrUpstreamUnavailable))
	h.clock.Advance(time.Hour)
	summary, err = h.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Checked != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if !h.sched.LastSuccess().Equal(last) {
		t.Errorf("LastSuccess() moved to %v after a cycle with no successful fetch", h.sched.LastSuccess())
	}
}
