package cooldown

import (
	"context"
	"sync"
	"time"

	"sentiment-alerts/internal/models"
)

// MemoryStore keeps cooldowns in process memory. It is only correct for a
// single replica.
type MemoryStore struct {
	window time.Duration

	mu    sync.Mutex
	fired map[string]time.Time
}

// NewMemoryStore creates an in-memory cooldown store.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window: window,
		fired:  make(map[string]time.Time),
	}
}

// IsCoolingDown reports whether the pair fired within the window before now.
func (s *MemoryStore) IsCoolingDown(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	firedAt, ok := s.fired[Key("", ticker, dir)]
	return ok && cooling(firedAt, now, s.window), nil
}

// TryReserve records now if the pair is not cooling down.
func (s *MemoryStore) TryReserve(ctx context.Context, ticker string, dir models.Direction, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key("", ticker, dir)
	if firedAt, ok := s.fired[key]; ok && cooling(firedAt, now, s.window) {
		return false, nil
	}
	s.fired[key] = now
	s.sweep(now)
	return true, nil
}

// RecordFired overwrites the pair's fire time.
func (s *MemoryStore) RecordFired(ctx context.Context, ticker string, dir models.Direction, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fired[Key("", ticker, dir)] = now
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases nothing.
func (s *MemoryStore) Close() error {
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, t := range s.fired {
		if !cooling(t, now, s.window) {
			delete(s.fired, k)
		}
	}
}
