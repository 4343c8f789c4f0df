package events

import (
	"sync"
	"testing"
	"time"

	"github.com/cuemby/slotsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(name string) *string { return &name }

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(types.ChangeEvent{
		Kind:   types.ChangeCreated,
		Record: types.Record{Date: "2025-08-29", TimeSlot: types.Morning, Person: person("Karen")},
	})

	select {
	case ev := <-sub:
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
		assert.Equal(t, types.ChangeCreated, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBrokerStopClosesSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()

	sub := b.Subscribe()
	b.Stop()
	b.Stop()

	_, open := <-sub
	assert.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount())

	late := b.Subscribe()
	_, open = <-late
	assert.False(t, open)

	b.Unsubscribe(sub)
	b.Publish(types.ChangeEvent{Kind: types.ChangeUpdated})
}

func TestBrokerFeedReportsDisconnectOnStop(t *testing.T) {
	b := NewBroker()
	b.Start()

	statuses := make(chan Status, 2)
	sub, err := b.SubscribeFeed(nil, func(s Status) { statuses <- s })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, StatusConnected, <-statuses)
	b.Stop()
	select {
	case s := <-statuses:
		assert.Equal(t, StatusDisconnected, s)
	case <-time.After(time.Second):
		t.Fatal("disconnect not reported")
	}
}

func TestBrokerEvictsSlowSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	release := make(chan struct{})
	var (
		mu       sync.Mutex
		got      []types.Date
		statuses []Status
	)
	sub, err := b.SubscribeFeed(
		func(ev types.ChangeEvent) {
			<-release
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev.Record.Date)
		},
		func(s Status) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s)
		},
	)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	rng, err := types.NewDateRange("2025-01-01", "2025-12-31")
	require.NoError(t, err)
	dates := rng.Dates()[:120]
	for _, d := range dates {
		b.Publish(types.ChangeEvent{Kind: types.ChangeUpdated, Record: types.Record{Date: d, TimeSlot: types.Morning}})
	}

	assert.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusConnected, StatusDisconnected}, statuses)
	require.NotEmpty(t, got)
	assert.Less(t, len(got), len(dates))
	assert.Equal(t, dates[:len(got)], got, "delivered events are an in-order prefix with no gaps")
}

func TestBrokerFeedDeliversInOrder(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	var (
		mu       sync.Mutex
		got      []types.Date
		statuses []Status
	)
	sub, err := b.AsFeed().Subscribe(
		func(ev types.ChangeEvent) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev.Record.Date)
		},
		func(s Status) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s)
		},
	)
	require.NoError(t, err)

	dates := []types.Date{"2025-08-29", "2025-08-30", "2025-08-31"}
	for _, d := range dates {
		b.Publish(types.ChangeEvent{Kind: types.ChangeUpdated, Record: types.Record{Date: d, TimeSlot: types.Evening}})
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(dates)
	}, time.Second, 10*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, dates, got)
	assert.Equal(t, []Status{StatusConnected, StatusDisconnected}, statuses)
}

func TestUnsubscribeWithoutEvents(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub, err := b.SubscribeFeed(nil, nil)
	require.NoError(t, err)
	sub.Unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestDecode(t *testing.T) {
	valid := &RecordFields{Date: "2025-08-29", TimeSlot: "morning", Person: person("Karen")}

	tests := []struct {
		name    string
		payload Payload
		wantErr error
		check   func(t *testing.T, ev types.ChangeEvent)
	}{
		{
			name:    "created",
			payload: Payload{ID: "1", Kind: "created", New: valid},
			check: func(t *testing.T, ev types.ChangeEvent) {
				assert.Equal(t, types.ChangeCreated, ev.Kind)
				assert.Equal(t, "Karen", ev.Record.Slot().PersonName())
				assert.Equal(t, types.Morning, ev.Record.TimeSlot)
			},
		},
		{
			name:    "removed uses old snapshot key only",
			payload: Payload{Kind: "removed", Old: &RecordFields{Date: "2025-08-29", TimeSlot: "evening", Person: person("Kelly"), Completed: true}},
			check: func(t *testing.T, ev types.ChangeEvent) {
				assert.Equal(t, types.ChangeRemoved, ev.Kind)
				assert.Equal(t, types.Evening, ev.Record.TimeSlot)
				assert.Nil(t, ev.Record.Person)
				assert.False(t, ev.Record.Completed)
			},
		},
		{name: "unknown kind", payload: Payload{Kind: "truncated", New: valid}, wantErr: ErrUnknownKind},
		{name: "updated without new", payload: Payload{Kind: "updated", Old: valid}, wantErr: ErrMissingSnapshot},
		{name: "removed without old", payload: Payload{Kind: "removed", New: valid}, wantErr: ErrMissingSnapshot},
		{name: "bad date", payload: Payload{Kind: "created", New: &RecordFields{Date: "29/08/2025", TimeSlot: "morning"}}, wantErr: ErrInvalidRecord},
		{name: "bad slot", payload: Payload{Kind: "created", New: &RecordFields{Date: "2025-08-29", TimeSlot: "noon"}}, wantErr: ErrInvalidRecord},
		{name: "completed without person", payload: Payload{Kind: "updated", New: &RecordFields{Date: "2025-08-29", TimeSlot: "morning", Completed: true}}, wantErr: ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestEncodePlacesSnapshotByKind(t *testing.T) {
	rec := types.Record{Date: "2025-08-29", TimeSlot: types.Morning, Person: person("Karen")}

	created := Encode(types.ChangeEvent{Kind: types.ChangeCreated, Record: rec})
	require.NotNil(t, created.New)
	assert.Nil(t, created.Old)

	removed := Encode(types.ChangeEvent{Kind: types.ChangeRemoved, Record: rec})
	require.NotNil(t, removed.Old)
	assert.Nil(t, removed.New)
	assert.Equal(t, "2025-08-29", removed.Old.Date)
}
