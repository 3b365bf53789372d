package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/logging"
	"sentiment-alerts/internal/models"
)

const maxBodyBytes = 1 << 20

// HTTPSource queries a JSON sentiment API.
//
//	GET  {base_url}{path}?ticker=AAPL
//	POST {base_url}{path}  {"ticker":"AAPL"}
//
// and expects {"ticker":"AAPL","score":0.82}.
type HTTPSource struct {
	endpoint string
	method   string
	apiKey   string
	scoreMin float64
	scoreMax float64
	client   *http.Client
	logger   zerolog.Logger
	now      func() time.Time
}

type sentimentRequest struct {
	Ticker string `json:"ticker"`
}

type sentimentResponse struct {
	Ticker string   `json:"ticker"`
	Score  *float64 `json:"score"`
}

// NewHTTPSource creates an HTTP sentiment source. The per-request deadline is
// applied by the caller's context.
func NewHTTPSource(cfg config.SourceConfig, logger zerolog.Logger) *HTTPSource {
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	return &HTTPSource{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		method:   method,
		apiKey:   cfg.APIKey,
		scoreMin: cfg.ScoreMin,
		scoreMax: cfg.ScoreMax,
		client:   &http.Client{},
		logger:   logger,
		now:      time.Now,
	}
}

// Fetch retrieves the score for ticker.
func (s *HTTPSource) Fetch(ctx context.Context, ticker string) (models.SentimentReading, error) {
	ticker = models.NormalizeTicker(ticker)

	req, err := s.newRequest(ctx, ticker)
	if err != nil {
		return models.SentimentReading{}, invalid(ticker, 0, err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	logging.LogAPICall(logging.WithComponent(logging.FromContext(ctx, s.logger), "sentiment_http"), s.method, s.endpoint, time.Since(start), err)
	if err != nil {
		return models.SentimentReading{}, unavailable(ticker, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.SentimentReading{}, unavailable(ticker, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return models.SentimentReading{}, unavailable(ticker, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.SentimentReading{}, invalid(ticker, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body)))
	}

	var out sentimentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return models.SentimentReading{}, invalid(ticker, resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	if out.Score == nil {
		return models.SentimentReading{}, invalid(ticker, resp.StatusCode, fmt.Errorf("response has no score"))
	}
	if out.Ticker != "" && models.NormalizeTicker(out.Ticker) != ticker {
		return models.SentimentReading{}, invalid(ticker, resp.StatusCode, fmt.Errorf("response is for %q", out.Ticker))
	}
	if err := checkScore(ticker, *out.Score, s.scoreMin, s.scoreMax); err != nil {
		return models.SentimentReading{}, err
	}

	return models.SentimentReading{
		Ticker:    ticker,
		Score:     *out.Score,
		FetchedAt: s.now(),
	}, nil
}

func (s *HTTPSource) newRequest(ctx context.Context, ticker string) (*http.Request, error) {
	var req *http.Request
	var err error

	if s.method == http.MethodPost {
		payload, mErr := json.Marshal(sentimentRequest{Ticker: ticker})
		if mErr != nil {
			return nil, mErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		u, pErr := url.Parse(s.endpoint)
		if pErr != nil {
			return nil, pErr
		}
		q := u.Query()
		q.Set("ticker", ticker)
		u.RawQuery = q.Encode()

		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return req, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
