package health

import (
	"context"
	"time"
)

// CheckType represents the type of probe
type CheckType string

const (
	CheckTypeHTTP      CheckType = "http"
	CheckTypeWebsocket CheckType = "websocket"
)

// Result represents the outcome of a single probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all probes must implement
type Checker interface {
	// Check performs the probe and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of probe
	Type() CheckType
}

// Config controls repeated probing in `slotsync status --watch`
type Config struct {
	// Interval is the time between probe rounds
	Interval time.Duration

	// Timeout is the maximum time to wait for one probe
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// Status tracks the health of one probed endpoint across rounds
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastResult           Result

	// Healthy flips to false only after Retries consecutive failures
	Healthy bool
}

// NewStatus creates a Status that assumes health until proven otherwise
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update folds a new result into the status
func (s *Status) Update(result Result, config Config) {
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// Probe is a named checker
type Probe struct {
	Name    string
	Checker Checker
}

// ServerProbes returns the probes that describe a slotsync server at endpoint
func ServerProbes(endpoint string) ([]Probe, error) {
	ws, err := NewWebsocketChecker(endpoint + "/v1/changes")
	if err != nil {
		return nil, err
	}
	return []Probe{
		{Name: "health", Checker: NewHTTPChecker(endpoint + "/health")},
		{Name: "ready", Checker: NewHTTPChecker(endpoint + "/ready").WithStatusRange(200, 299)},
		{Name: "changes", Checker: ws},
	}, nil
}

// RunAll runs every probe once, each bounded by timeout
func RunAll(ctx context.Context, probes []Probe, timeout time.Duration) map[string]Result {
	results := make(map[string]Result, len(probes))
	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		results[p.Name] = p.Checker.Check(pctx)
		cancel()
	}
	return results
}
