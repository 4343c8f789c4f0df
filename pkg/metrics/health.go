package metrics

import (
	"encoding/json"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Overall states reported by GetHealth and GetReadiness.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// HealthStatus is the JSON body served by the health, readiness and
// liveness endpoints.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	StartTime  time.Time         `json:"-"`
}

// ComponentHealth is the last report for one named part of the process:
// "table" on the server, "store" and "feed" in a client.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
	// Changed is when Healthy last flipped.
	Changed time.Time
}

// HealthChecker holds component reports for the process.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   []string
	startTime  time.Time
	version    string
}

var healthChecker = &HealthChecker{
	components: make(map[string]ComponentHealth),
	critical:   []string{"table"},
	startTime:  time.Now(),
}

// SetVersion sets the version string for health responses.
func SetVersion(version string) {
	healthChecker.mu.Lock()
	healthChecker.version = version
	healthChecker.mu.Unlock()
}

// SetCriticalComponents replaces the set of components that gate readiness.
// The server gates on the table; a client process gates on store and feed.
func SetCriticalComponents(names ...string) {
	healthChecker.mu.Lock()
	healthChecker.critical = slices.Clone(names)
	healthChecker.mu.Unlock()
}

// RegisterComponent records a report for name.
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.report(name, healthy, message)
}

// UpdateComponent records a new report for name; unknown names are added.
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.report(name, healthy, message)
}

func (h *HealthChecker) report(name string, healthy bool, message string) {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	changed := now
	if prev, ok := h.components[name]; ok && prev.Healthy == healthy {
		changed = prev.Changed
	}
	h.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: now,
		Changed: changed,
	}
}

func (h *HealthChecker) status(state, message string, components map[string]string) HealthStatus {
	now := time.Now()
	return HealthStatus{
		Status:     state,
		Timestamp:  now,
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     now.Sub(h.startTime).Round(time.Second).String(),
		StartTime:  h.startTime,
	}
}

// GetHealth summarizes every registered component. A failing critical
// component makes the process unhealthy; any other failure only degrades it.
func GetHealth() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := StatusHealthy
	components := make(map[string]string, len(h.components))
	var failing []string
	for name, comp := range h.components {
		if comp.Healthy {
			components[name] = StatusHealthy
			continue
		}
		components[name] = "unhealthy: " + comp.Message
		failing = append(failing, name)
		switch {
		case slices.Contains(h.critical, name):
			state = StatusUnhealthy
		case state == StatusHealthy:
			state = StatusDegraded
		}
	}

	message := ""
	if len(failing) > 0 {
		sort.Strings(failing)
		message = "failing: " + strings.Join(failing, ", ")
	}
	return h.status(state, message, components)
}

// GetReadiness reports whether every critical component has registered and
// is healthy.
func GetReadiness() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	components := make(map[string]string, len(h.critical))
	var waiting []string
	for _, name := range h.critical {
		comp, ok := h.components[name]
		switch {
		case !ok:
			components[name] = "not registered"
			waiting = append(waiting, name)
		case !comp.Healthy:
			components[name] = "not ready: " + comp.Message
			waiting = append(waiting, name)
		default:
			components[name] = StatusReady
		}
	}

	if len(waiting) > 0 {
		return h.status(StatusNotReady, "waiting for "+strings.Join(waiting, ", "), components)
	}
	return h.status(StatusReady, "", components)
}

func writeStatus(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves GetHealth. Only an unhealthy process answers 503;
// a degraded one still answers 200.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, health)
	}
}

// ReadyHandler serves GetReadiness.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, readiness)
	}
}

// LivenessHandler answers 200 for as long as the process can serve HTTP.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		healthChecker.mu.RLock()
		started := healthChecker.startTime
		healthChecker.mu.RUnlock()

		writeStatus(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}
