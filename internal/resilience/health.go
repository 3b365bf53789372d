package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Latency   time.Duration          `json:"latency_ns"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// HealthMonitor periodically runs registered checks and serves the results.
type HealthMonitor struct {
	mu sync.RWMutex

	checkInterval time.Duration
	checkTimeout  time.Duration
	logger        zerolog.Logger

	startTime       time.Time
	components      map[string]HealthCheck
	componentHealth map[string]ComponentHealth
	overallStatus   HealthStatus
	totalChecks     int64
	failedChecks    int64

	stop chan struct{}
	done chan struct{}
}

// HealthMonitorConfig holds health monitor configuration.
type HealthMonitorConfig struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
}

// DefaultHealthMonitorConfig returns default configuration.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		CheckInterval: 30 * time.Second,
		CheckTimeout:  5 * time.Second,
	}
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(config HealthMonitorConfig, logger zerolog.Logger) *HealthMonitor {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultHealthMonitorConfig().CheckInterval
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = DefaultHealthMonitorConfig().CheckTimeout
	}
	return &HealthMonitor{
		checkInterval:   config.CheckInterval,
		checkTimeout:    config.CheckTimeout,
		logger:          logger.With().Str("component", "health").Logger(),
		startTime:       time.Now(),
		components:      make(map[string]HealthCheck),
		componentHealth: make(map[string]ComponentHealth),
		overallStatus:   HealthStatusUnknown,
	}
}

// RegisterComponent registers a health check for a component.
func (m *HealthMonitor) RegisterComponent(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = check
}

// Start runs the checks once and then on every interval until Stop.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	m.RunChecks(ctx)

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				m.RunChecks(ctx)
			}
		}
	}()
}

// Stop stops the monitoring loop.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// RunChecks runs every registered check concurrently and updates the overall status.
func (m *HealthMonitor) RunChecks(ctx context.Context) {
	m.mu.RLock()
	components := make(map[string]HealthCheck, len(m.components))
	for k, v := range m.components {
		components[k] = v
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(components))

	for name, check := range components {
		wg.Add(1)
		go func(n string, c HealthCheck) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- ComponentHealth{
						Name:      n,
						Status:    HealthStatusUnhealthy,
						Message:   fmt.Sprintf("check panicked: %v", r),
						LastCheck: time.Now(),
					}
				}
			}()

			start := time.Now()
			health := c(ctx)
			health.Name = n
			health.LastCheck = time.Now()
			if health.Latency == 0 {
				health.Latency = time.Since(start)
			}
			results <- health
		}(name, check)
	}

	wg.Wait()
	close(results)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalChecks++
	overall := HealthStatusHealthy
	for health := range results {
		prev, seen := m.componentHealth[health.Name]
		m.componentHealth[health.Name] = health

		switch health.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
			m.failedChecks++
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}

		if !seen || prev.Status != health.Status {
			m.logger.Info().
				Str("check", health.Name).
				Str("status", string(health.Status)).
				Str("message", health.Message).
				Msg("Health status changed")
		}
	}
	m.overallStatus = overall
}

// GetHealth returns the current health status.
func (m *HealthMonitor) GetHealth() SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make([]ComponentHealth, 0, len(m.componentHealth))
	for _, h := range m.componentHealth {
		components = append(components, h)
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	return SystemHealth{
		Status:       m.overallStatus,
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
		StartTime:    m.startTime,
		Components:   components,
		Goroutines:   runtime.NumGoroutine(),
		TotalChecks:  m.totalChecks,
		FailedChecks: m.failedChecks,
	}
}

// GetComponentHealth returns health for a specific component.
func (m *HealthMonitor) GetComponentHealth(name string) (ComponentHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health, ok := m.componentHealth[name]
	return health, ok
}

// IsHealthy returns true if the system is healthy.
func (m *HealthMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overallStatus == HealthStatusHealthy
}

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status       HealthStatus      `json:"status"`
	Uptime       string            `json:"uptime"`
	StartTime    time.Time         `json:"start_time"`
	Components   []ComponentHealth `json:"components"`
	Goroutines   int               `json:"goroutines"`
	TotalChecks  int64             `json:"total_checks"`
	FailedChecks int64             `json:"failed_checks"`
}

// ToJSON returns the health status as JSON.
func (h SystemHealth) ToJSON() ([]byte, error) {
	return json.Marshal(h)
}

// HealthHTTPHandler returns an HTTP handler for the full health report.
func (m *HealthMonitor) HealthHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := m.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		switch health.Status {
		case HealthStatusHealthy, HealthStatusDegraded:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		data, _ := health.ToJSON()
		w.Write(data)
	}
}

// LivenessHTTPHandler returns an HTTP handler for liveness checks.
func (m *HealthMonitor) LivenessHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"alive"}`))
	}
}

// ReadinessHTTPHandler returns an HTTP handler for readiness checks.
func (m *HealthMonitor) ReadinessHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := m.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		if health.Status == HealthStatusHealthy || health.Status == HealthStatusDegraded {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ready"}`))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not_ready"}`))
		}
	}
}

// Routes mounts the probes and, when given, the metrics handler.
func (m *HealthMonitor) Routes(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", m.HealthHTTPHandler())
	mux.HandleFunc("/livez", m.LivenessHTTPHandler())
	mux.HandleFunc("/readyz", m.ReadinessHTTPHandler())
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

// StoreHealthCheck creates a health check for a backing store.
func StoreHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		health := ComponentHealth{}

		start := time.Now()
		err := ping(ctx)
		health.Latency = time.Since(start)

		if err != nil {
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("ping failed: %v", err)
			return health
		}

		if health.Latency > 250*time.Millisecond {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("slow: %v", health.Latency)
			return health
		}

		health.Status = HealthStatusHealthy
		return health
	}
}

// CycleAgeCheck reports unhealthy when the last successful cycle is older than maxAge.
// Before the first cycle completes it reports degraded for up to maxAge after startedAt.
func CycleAgeCheck(lastSuccess func() time.Time, startedAt time.Time, maxAge time.Duration) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		health := ComponentHealth{Details: make(map[string]interface{})}

		last := lastSuccess()
		if last.IsZero() {
			if time.Since(startedAt) > maxAge {
				health.Status = HealthStatusUnhealthy
				health.Message = fmt.Sprintf("no cycle completed in %v", maxAge)
				return health
			}
			health.Status = HealthStatusDegraded
			health.Message = "no cycle completed yet"
			return health
		}

		age := time.Since(last)
		health.Details["last_success"] = last
		health.Details["age_seconds"] = int64(age.Seconds())

		if age > maxAge {
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("last successful cycle %v ago", age.Round(time.Second))
			return health
		}

		health.Status = HealthStatusHealthy
		return health
	}
}

// CircuitHealthCheck reports degraded while any circuit returned by circuits
// is not closed. Open circuits are listed by name.
func CircuitHealthCheck(circuits func() []*CircuitBreaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		var open []string
		var failures, rejected int64
		all := circuits()
		for _, cb := range all {
			stats := cb.Stats()
			failures += stats.TotalFailures
			rejected += stats.TotalRejected
			if stats.State != CircuitClosed {
				open = append(open, fmt.Sprintf("%s=%s", stats.Name, stats.State))
			}
		}

		health := ComponentHealth{
			Details: map[string]interface{}{
				"circuits":       len(all),
				"total_failures": failures,
				"total_rejected": rejected,
			},
		}
		if len(open) == 0 {
			health.Status = HealthStatusHealthy
			return health
		}
		health.Details["not_closed"] = open
		health.Status = HealthStatusDegraded
		health.Message = fmt.Sprintf("%d of %d circuits not closed", len(open), len(all))
		return health
	}
}
