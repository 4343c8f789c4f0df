package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/storage"
	"github.com/gorilla/websocket"
)

// Server exposes the authoritative table over HTTP and its change stream
// over a websocket
type Server struct {
	table    storage.Table
	broker   *events.Broker
	version  string
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	server   *http.Server
	done     chan struct{}
	stopOnce sync.Once

	// pingInterval keeps idle change streams alive
	pingInterval time.Duration
}

// NewServer creates a new API server
func NewServer(table storage.Table, broker *events.Broker, version string) *Server {
	s := &Server{
		table:        table,
		broker:       broker,
		version:      version,
		mux:          http.NewServeMux(),
		pingInterval: 30 * time.Second,
		done:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	s.mux.HandleFunc("/v1/slots", s.listSlots)
	s.mux.HandleFunc("/v1/slots/{date}/{slot}", s.slot)
	s.mux.HandleFunc("/v1/changes", s.changes)

	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on addr and serves until Stop is called
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called. It returns nil
// straight away, closing ln, when Stop already ran.
func (s *Server) Serve(ln net.Listener) error {
	log.Logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes open change streams and gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}
