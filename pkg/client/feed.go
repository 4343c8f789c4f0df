package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/gorilla/websocket"
)

// FeedSettings tunes the websocket change feed
type FeedSettings struct {
	// ReconnectDelay is the wait between dial attempts
	ReconnectDelay time.Duration

	// HandshakeTimeout bounds each dial
	HandshakeTimeout time.Duration

	// ReadTimeout drops a connection that sent nothing, pings included,
	// for this long
	ReadTimeout time.Duration
}

// DefaultFeedSettings returns the settings used by `slotsync` clients
func DefaultFeedSettings() FeedSettings {
	return FeedSettings{
		ReconnectDelay:   2 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
	}
}

// Feed implements events.Feed over the server's /v1/changes websocket
type Feed struct {
	url      string
	settings FeedSettings
}

var _ events.Feed = (*Feed)(nil)

// NewFeed creates a feed for endpoint (e.g. http://127.0.0.1:8080)
func NewFeed(endpoint string, settings FeedSettings) (*Feed, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid endpoint scheme %q", u.Scheme)
	}
	u.Path += "/v1/changes"

	return &Feed{url: u.String(), settings: settings}, nil
}

// Subscribe dials in the background and keeps redialing after a loss until
// the subscription is released. Events are delivered on one goroutine in
// arrival order.
func (f *Feed) Subscribe(onEvent events.EventHandler, onStatus events.StatusHandler) (events.Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &feedSubscription{
		feed:     f,
		ctx:      ctx,
		cancel:   cancel,
		onEvent:  onEvent,
		onStatus: onStatus,
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type feedSubscription struct {
	feed     *Feed
	ctx      context.Context
	cancel   context.CancelFunc
	onEvent  events.EventHandler
	onStatus events.StatusHandler
	done     chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn

	status events.Status
}

// Unsubscribe stops redialing, closes the socket and waits for delivery to end
func (s *feedSubscription) Unsubscribe() {
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *feedSubscription) run() {
	defer close(s.done)

	logger := log.WithComponent("feed")
	dialer := websocket.Dialer{HandshakeTimeout: s.feed.settings.HandshakeTimeout}

	for {
		ws, _, err := dialer.DialContext(s.ctx, s.feed.url, nil)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Str("url", s.feed.url).Msg("change feed dial failed")
			s.report(events.StatusDisconnected)
		} else {
			s.serve(ws)
			if s.ctx.Err() != nil {
				return
			}
			s.report(events.StatusDisconnected)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.feed.settings.ReconnectDelay):
		}
	}
}

func (s *feedSubscription) serve(ws *websocket.Conn) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.conn = ws
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		ws.Close()
	}()

	logger := log.WithComponent("feed")
	s.report(events.StatusConnected)

	readTimeout := s.feed.settings.ReadTimeout
	extend := func() {
		if readTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(readTimeout))
		}
	}
	extend()
	ws.SetPingHandler(func(data string) error {
		extend()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				logger.Info().Err(err).Msg("change feed lost")
			}
			return
		}
		extend()

		if messageType != websocket.TextMessage {
			continue
		}

		var p events.Payload
		if err := json.Unmarshal(message, &p); err != nil {
			metrics.EventsDroppedTotal.WithLabelValues("malformed").Inc()
			logger.Warn().Err(err).Msg("dropping undecodable change payload")
			continue
		}
		ev, err := events.Decode(p)
		if err != nil {
			metrics.EventsDroppedTotal.WithLabelValues("malformed").Inc()
			logger.Warn().Err(err).Str("kind", p.Kind).Msg("dropping malformed change payload")
			continue
		}

		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// report forwards status transitions only, so repeated dial failures
// produce a single disconnected
func (s *feedSubscription) report(status events.Status) {
	if s.status == status {
		return
	}
	s.status = status
	if s.onStatus != nil {
		s.onStatus(status)
	}
}
