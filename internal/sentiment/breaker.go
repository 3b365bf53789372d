package sentiment

import (
	"context"
	"sort"
	"sync"

	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
	"sentiment-alerts/internal/resilience"
)

// BreakerSource fails fast for a ticker while that ticker's circuit is open.
// Circuits are keyed per ticker so one failing symbol never blocks the rest.
type BreakerSource struct {
	next   Source
	name   string
	config resilience.CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewBreakerSource wraps next. Each ticker gets its own circuit built from
// cfg and named "<name>:<TICKER>".
func NewBreakerSource(next Source, name string, cfg resilience.CircuitBreakerConfig) *BreakerSource {
	return &BreakerSource{
		next:     next,
		name:     name,
		config:   cfg,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Breaker returns the circuit for ticker, creating it on first use.
func (s *BreakerSource) Breaker(ticker string) *resilience.CircuitBreaker {
	ticker = models.NormalizeTicker(ticker)

	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[ticker]
	if !ok {
		cb = resilience.NewCircuitBreaker(s.name+":"+ticker, s.config)
		s.breakers[ticker] = cb
	}
	return cb
}

// Breakers returns every circuit created so far, ordered by name.
func (s *BreakerSource) Breakers() []*resilience.CircuitBreaker {
	s.mu.Lock()
	out := make([]*resilience.CircuitBreaker, 0, len(s.breakers))
	for _, cb := range s.breakers {
		out = append(out, cb)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Fetch delegates to the wrapped source. Only upstream-unavailable errors
// count against the circuit; a bad payload does not.
func (s *BreakerSource) Fetch(ctx context.Context, ticker string) (models.SentimentReading, error) {
	var invalidErr error

	reading, err := resilience.ExecuteWithResult(s.Breaker(ticker), ctx, func(ctx context.Context) (models.SentimentReading, error) {
		r, err := s.next.Fetch(ctx, ticker)
		if err != nil && !isUnavailable(err) {
			invalidErr = err
			return r, nil
		}
		return r, err
	})

	switch {
	case apperrors.Is(err, resilience.ErrCircuitOpen):
		return models.SentimentReading{}, unavailable(models.NormalizeTicker(ticker), 0, err)
	case err != nil:
		return models.SentimentReading{}, err
	case invalidErr != nil:
		return models.SentimentReading{}, invalidErr
	}
	return reading, nil
}
