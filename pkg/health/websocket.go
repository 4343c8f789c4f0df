package health

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketChecker verifies that the change stream accepts subscribers
type WebsocketChecker struct {
	// URL is the ws:// or wss:// address of the change stream
	URL string
}

// NewWebsocketChecker accepts http(s) or ws(s) URLs
func NewWebsocketChecker(rawURL string) (*WebsocketChecker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &WebsocketChecker{URL: u.String()}, nil
}

// Check dials the stream and closes it straight away
func (w *WebsocketChecker) Check(ctx context.Context) Result {
	start := time.Now()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		msg := fmt.Sprintf("dial failed: %v", err)
		if resp != nil {
			msg = fmt.Sprintf("%s (HTTP %d)", msg, resp.StatusCode)
		}
		return Result{
			Healthy:   false,
			Message:   msg,
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	ws.Close()

	return Result{
		Healthy:   true,
		Message:   "change stream accepted subscriber",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe type
func (w *WebsocketChecker) Type() CheckType {
	return CheckTypeWebsocket
}
