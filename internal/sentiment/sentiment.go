// Package sentiment fetches per-ticker sentiment scores from an upstream provider.
package sentiment

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/internal/resilience"
)

// Source yields the current sentiment score for a ticker.
//
// Errors wrap errors.ErrUpstreamUnavailable (network, timeout, 5xx, open
// circuit) or errors.ErrInvalidResponse (4xx, malformed body, score out of range).
type Source interface {
	Fetch(ctx context.Context, ticker string) (models.SentimentReading, error)
}

// New builds the configured source, wrapped in per-ticker circuit breakers
// unless breaker_failures is 0.
func New(cfg config.SourceConfig, logger zerolog.Logger, onBreakerChange func(name string, from, to resilience.CircuitState)) (Source, error) {
	var src Source
	switch cfg.Kind {
	case "http", "":
		src = NewHTTPSource(cfg, logger)
	case "openai":
		src = NewOpenAISource(cfg, logger)
	default:
		return nil, apperrors.NewValidationError("source.kind", cfg.Kind, "unknown sentiment source")
	}

	if cfg.BreakerFailures == 0 {
		return src, nil
	}

	bc := resilience.DefaultCircuitBreakerConfig()
	bc.FailureThreshold = cfg.BreakerFailures
	if cfg.BreakerReset > 0 {
		bc.Cooldown = cfg.BreakerReset
	}
	bc.OnStateChange = func(name string, from, to resilience.CircuitState) {
		logger.Warn().
			Str("breaker", name).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Sentiment circuit changed state")
		if onBreakerChange != nil {
			onBreakerChange(name, from, to)
		}
	}
	return NewBreakerSource(src, "sentiment_"+cfg.Kind, bc), nil
}

// checkScore validates a score against the configured range.
func checkScore(ticker string, score, min, max float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: %s score is not finite", apperrors.ErrInvalidResponse, ticker)
	}
	if score < min || score > max {
		return fmt.Errorf("%w: %s score %g outside [%g, %g]", apperrors.ErrInvalidResponse, ticker, score, min, max)
	}
	return nil
}

func unavailable(ticker string, status int, err error) error {
	return apperrors.NewUpstreamError(ticker, status, fmt.Errorf("%w: %w", apperrors.ErrUpstreamUnavailable, err))
}

func invalid(ticker string, status int, err error) error {
	return apperrors.NewUpstreamError(ticker, status, fmt.Errorf("%w: %w", apperrors.ErrInvalidResponse, err))
}

func isUnavailable(err error) bool {
	return apperrors.Is(err, apperrors.ErrUpstreamUnavailable)
}
