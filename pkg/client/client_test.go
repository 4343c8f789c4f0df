package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/slotsync/pkg/api"
	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/storage"
	"github.com/cuemby/slotsync/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	morning = types.SlotKey{Date: "2025-08-29", TimeSlot: types.Morning}
	evening = types.SlotKey{Date: "2025-08-29", TimeSlot: types.Evening}
)

func newServer(t *testing.T) (*httptest.Server, *events.Broker) {
	t.Helper()

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	table, err := storage.NewBoltTable(t.TempDir(), broker)
	require.NoError(t, err)
	t.Cleanup(func() { table.Close() })

	s := api.NewServer(table, broker, "test")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
		ts.Close()
	})
	return ts, broker
}

func testFeedSettings() FeedSettings {
	return FeedSettings{
		ReconnectDelay:   20 * time.Millisecond,
		HandshakeTimeout: time.Second,
		ReadTimeout:      5 * time.Second,
	}
}

type recorder struct {
	mu       sync.Mutex
	events   []types.ChangeEvent
	statuses []events.Status
}

func (r *recorder) onEvent(ev types.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) onStatus(s events.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) Events() []types.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ChangeEvent(nil), r.events...)
}

func (r *recorder) Statuses() []events.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Status(nil), r.statuses...)
}

func TestGatewayRoundTrip(t *testing.T) {
	ts, _ := newServer(t)
	gw := NewGateway(ts.URL+"/", time.Second)
	ctx := context.Background()

	karen := "Karen"
	require.NoError(t, gw.Upsert(ctx, types.Record{Date: morning.Date, TimeSlot: morning.TimeSlot, Person: &karen}))
	require.NoError(t, gw.Upsert(ctx, types.Record{Date: evening.Date, TimeSlot: evening.TimeSlot, Person: &karen}))
	require.NoError(t, gw.Update(ctx, morning, true))
	require.NoError(t, gw.Remove(ctx, evening))

	records, err := gw.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, morning, records[0].Key())
	assert.Equal(t, "Karen", *records[0].Person)
	assert.True(t, records[0].Completed)
}

func TestGatewayFetchAllEmpty(t *testing.T) {
	ts, _ := newServer(t)
	gw := NewGateway(ts.URL, time.Second)

	records, err := gw.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGatewayUpdateMissingRow(t *testing.T) {
	ts, _ := newServer(t)
	gw := NewGateway(ts.URL, time.Second)

	err := gw.Update(context.Background(), morning, true)
	require.Error(t, err)

	var rf *gateway.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, gateway.OpUpdate, rf.Op)
	assert.Equal(t, morning, rf.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestGatewayServerUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	gw := NewGateway(url, time.Second)
	_, err := gw.FetchAll(context.Background())

	var rf *gateway.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, gateway.OpFetchAll, rf.Op)
}

func TestGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	gw := NewGateway(ts.URL, 50*time.Millisecond)
	err := gw.Remove(context.Background(), morning)

	var rf *gateway.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGatewayServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"disk full"}`))
	}))
	defer ts.Close()

	gw := NewGateway(ts.URL, time.Second)
	karen := "Karen"
	err := gw.Upsert(context.Background(), types.Record{Date: morning.Date, TimeSlot: morning.TimeSlot, Person: &karen})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "disk full", se.Message)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
}

func TestNewFeedRejectsBadScheme(t *testing.T) {
	_, err := NewFeed("ftp://example.com", testFeedSettings())
	assert.Error(t, err)

	f, err := NewFeed("https://example.com/base/", testFeedSettings())
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/base/v1/changes", f.url)
}

func TestFeedDeliversChanges(t *testing.T) {
	ts, broker := newServer(t)
	gw := NewGateway(ts.URL, time.Second)

	feed, err := NewFeed(ts.URL, testFeedSettings())
	require.NoError(t, err)

	rec := &recorder{}
	sub, err := feed.Subscribe(rec.onEvent, rec.onStatus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		return broker.SubscriberCount() == 1 && len(rec.Statuses()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.Status{events.StatusConnected}, rec.Statuses())

	ctx := context.Background()
	darlene := "Darlene"
	require.NoError(t, gw.Upsert(ctx, types.Record{Date: evening.Date, TimeSlot: evening.TimeSlot, Person: &darlene}))
	require.NoError(t, gw.Update(ctx, evening, true))
	require.NoError(t, gw.Remove(ctx, evening))

	require.Eventually(t, func() bool {
		return len(rec.Events()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	got := rec.Events()
	assert.Equal(t, types.ChangeCreated, got[0].Kind)
	assert.Equal(t, types.ChangeUpdated, got[1].Kind)
	assert.True(t, got[1].Record.Completed)
	assert.Equal(t, types.ChangeRemoved, got[2].Kind)
	assert.Equal(t, evening, got[2].Record.Key())
}

func TestFeedDropsMalformedPayloads(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_ = ws.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"renamed","new":{"date":"2025-08-29","time_slot":"morning"}}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"created","new":{"date":"2025-08-29","time_slot":"noon"}}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"created","new":{"date":"2025-08-29","time_slot":"morning","person":"Kelly"}}`))

		// Hold the connection open until the client leaves
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	feed, err := NewFeed(ts.URL, testFeedSettings())
	require.NoError(t, err)

	rec := &recorder{}
	sub, err := feed.Subscribe(rec.onEvent, rec.onStatus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		return len(rec.Events()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ev := rec.Events()[0]
	assert.Equal(t, types.ChangeCreated, ev.Kind)
	assert.Equal(t, "Kelly", ev.Record.Slot().PersonName())
}

func TestFeedReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var (
		mu    sync.Mutex
		dials int
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		dials++
		first := dials == 1
		mu.Unlock()

		if first {
			// Drop the first connection straight away
			ws.Close()
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	feed, err := NewFeed(ts.URL, testFeedSettings())
	require.NoError(t, err)

	rec := &recorder{}
	sub, err := feed.Subscribe(rec.onEvent, rec.onStatus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		return len(rec.Statuses()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.Status{
		events.StatusConnected,
		events.StatusDisconnected,
		events.StatusConnected,
	}, rec.Statuses())
}

func TestFeedReportsDisconnectedOnceWhileUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	feed, err := NewFeed(url, testFeedSettings())
	require.NoError(t, err)

	rec := &recorder{}
	sub, err := feed.Subscribe(rec.onEvent, rec.onStatus)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.Statuses()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Several redials happen in this window
	time.Sleep(100 * time.Millisecond)
	sub.Unsubscribe()

	assert.Equal(t, []events.Status{events.StatusDisconnected}, rec.Statuses())
}

func TestFeedUnsubscribeIsIdempotent(t *testing.T) {
	ts, broker := newServer(t)

	feed, err := NewFeed(ts.URL, testFeedSettings())
	require.NoError(t, err)

	rec := &recorder{}
	sub, err := feed.Subscribe(rec.onEvent, rec.onStatus)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return broker.SubscriberCount() == 1 && len(rec.Statuses()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Eventually(t, func() bool {
		return broker.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.Status{events.StatusConnected}, rec.Statuses())
}
