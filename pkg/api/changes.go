package api

import (
	"net/http"
	"time"

	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// changes streams every table change to a websocket client as JSON payloads.
// The stream ends when the client goes away or the server stops.
func (s *Server) changes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.broker == nil {
		http.Error(w, "Change stream not initialized", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		log.Logger.Debug().Err(err).Msg("change stream upgrade failed")
		return
	}
	defer ws.Close()

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	logger := log.WithComponent("changes")
	logger.Debug().Str("remote", r.RemoteAddr).Msg("change stream opened")

	// Client frames are ignored; reading only detects close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			return

		case <-closed:
			logger.Debug().Str("remote", r.RemoteAddr).Msg("change stream closed by client")
			return

		case ev, ok := <-sub:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(events.Encode(ev)); err != nil {
				logger.Debug().Err(err).Msg("change stream write failed")
				return
			}

		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
