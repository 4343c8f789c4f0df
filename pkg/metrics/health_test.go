package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealthChecker(critical ...string) {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		critical:   critical,
		startTime:  time.Now(),
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("store", true, "seeded")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["store"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "seeded", comp.Message)
}

func TestGetHealth_AllHealthy(t *testing.T) {
	resetHealthChecker()
	SetVersion("1.0.0")

	RegisterComponent("store", true, "")
	RegisterComponent("feed", true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealth_Failures(t *testing.T) {
	tests := []struct {
		name       string
		critical   []string
		wantStatus string
	}{
		{name: "critical component failing", critical: []string{"store", "feed"}, wantStatus: StatusUnhealthy},
		{name: "non-critical component failing", critical: []string{"store"}, wantStatus: StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealthChecker(tt.critical...)
			RegisterComponent("store", true, "")
			RegisterComponent("feed", false, "not subscribed")

			health := GetHealth()
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, "unhealthy: not subscribed", health.Components["feed"])
			assert.Equal(t, "failing: feed", health.Message)
		})
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		critical   []string
		register   map[string]bool
		wantStatus string
	}{
		{
			name:       "all critical components ready",
			critical:   []string{"store", "feed"},
			register:   map[string]bool{"store": true, "feed": true},
			wantStatus: "ready",
		},
		{
			name:       "critical component missing",
			critical:   []string{"store", "feed"},
			register:   map[string]bool{"store": true},
			wantStatus: "not_ready",
		},
		{
			name:       "critical component unhealthy",
			critical:   []string{"table"},
			register:   map[string]bool{"table": false},
			wantStatus: "not_ready",
		},
		{
			name:       "non-critical component unhealthy",
			critical:   []string{"table"},
			register:   map[string]bool{"table": true, "feed": false},
			wantStatus: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealthChecker()
			SetCriticalComponents(tt.critical...)
			for name, healthy := range tt.register {
				RegisterComponent(name, healthy, "")
			}

			readiness := GetReadiness()
			assert.Equal(t, tt.wantStatus, readiness.Status)
			if tt.wantStatus != StatusReady {
				assert.Contains(t, readiness.Message, "waiting for")
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker()
	SetVersion("test")
	RegisterComponent("table", true, "")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealthChecker("table")
	RegisterComponent("table", false, "database closed")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_DegradedStillServes(t *testing.T) {
	resetHealthChecker("table")
	RegisterComponent("table", true, "")
	RegisterComponent("feed", false, "reconnecting")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyHandler_NotReady(t *testing.T) {
	resetHealthChecker("table")

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestLivenessHandler(t *testing.T) {
	resetHealthChecker()

	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}

func TestUpdateComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("feed", true, "ok")
	UpdateComponent("feed", false, "disconnected")

	comp := healthChecker.components["feed"]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "disconnected", comp.Message)
	assert.Equal(t, comp.Updated, comp.Changed)

	UpdateComponent("feed", false, "still disconnected")
	again := healthChecker.components["feed"]
	assert.Equal(t, comp.Changed, again.Changed)
}
