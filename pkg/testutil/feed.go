package testutil

import (
	"errors"
	"sync"

	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/types"
)

// Feed is a manually driven events.Feed. Emit and SetStatus call the
// subscriber's handlers synchronously on the caller's goroutine.
type Feed struct {
	mu           sync.Mutex
	onEvent      events.EventHandler
	onStatus     events.StatusHandler
	subscribed   int
	unsubscribed int
	failSub      bool
}

var _ events.Feed = (*Feed)(nil)

// NewFeed creates an idle feed
func NewFeed() *Feed {
	return &Feed{}
}

// FailSubscribe makes Subscribe return an error
func (f *Feed) FailSubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSub = true
}

func (f *Feed) Subscribe(onEvent events.EventHandler, onStatus events.StatusHandler) (events.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSub {
		return nil, errors.New("subscribe refused")
	}
	f.onEvent, f.onStatus = onEvent, onStatus
	f.subscribed++
	return &feedSubscription{feed: f}, nil
}

// Emit delivers ev to the current subscriber, if any
func (f *Feed) Emit(ev types.ChangeEvent) {
	f.mu.Lock()
	onEvent := f.onEvent
	f.mu.Unlock()
	if onEvent != nil {
		onEvent(ev)
	}
}

// SetStatus delivers a connectivity transition
func (f *Feed) SetStatus(s events.Status) {
	f.mu.Lock()
	onStatus := f.onStatus
	f.mu.Unlock()
	if onStatus != nil {
		onStatus(s)
	}
}

// Subscribed reports how many times Subscribe succeeded
func (f *Feed) Subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed
}

// Unsubscribed reports how many times Unsubscribe was called
func (f *Feed) Unsubscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type feedSubscription struct {
	feed *Feed
}

func (s *feedSubscription) Unsubscribe() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.onEvent, s.feed.onStatus = nil, nil
	s.feed.unsubscribed++
}
