package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/slotsync/pkg/metrics"
)

const readyTableTimeout = 2 * time.Second

var errMethodNotAllowed = errors.New("method not allowed")

// HealthResponse is the /health body. The endpoint answers as long as the
// process is serving.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse is the /ready body, one entry in Checks per dependency.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    metrics.StatusHealthy,
		Timestamp: time.Now(),
		Version:   s.version,
	})
}

// readyHandler reports ready when the table answers a full read and the
// change broker exists. The table result is mirrored into the component
// registry so /metrics consumers see the same state.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	resp := ReadyResponse{Status: metrics.StatusReady, Checks: make(map[string]string, 2)}
	checks := []struct {
		name string
		run  func() (string, bool)
	}{
		{"table", func() (string, bool) { return s.checkTable(r.Context()) }},
		{"changes", s.checkChanges},
	}
	for _, c := range checks {
		detail, ok := c.run()
		resp.Checks[c.name] = detail
		if !ok && resp.Message == "" {
			resp.Status = metrics.StatusNotReady
			resp.Message = c.name + " " + detail
		}
	}
	resp.Timestamp = time.Now()

	code := http.StatusOK
	if resp.Status != metrics.StatusReady {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) checkTable(ctx context.Context) (string, bool) {
	if s.table == nil {
		return "not initialized", false
	}
	ctx, cancel := context.WithTimeout(ctx, readyTableTimeout)
	defer cancel()

	records, err := s.table.FetchAll(ctx)
	if err != nil {
		metrics.UpdateComponent("table", false, err.Error())
		return "error: " + err.Error(), false
	}
	metrics.UpdateComponent("table", true, "")
	return fmt.Sprintf("ok (%d rows)", len(records)), true
}

func (s *Server) checkChanges() (string, bool) {
	if s.broker == nil {
		return "not initialized", false
	}
	return fmt.Sprintf("ok (%d subscribers)", s.broker.SubscriberCount()), true
}
