package events

import (
	"sync"
	"time"

	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/types"
	"github.com/google/uuid"
)

const (
	publishQueue     = 100
	subscriberBuffer = 50
)

// Subscriber receives change events from a Broker. The broker closes it on
// Unsubscribe or Stop.
type Subscriber chan types.ChangeEvent

// Broker fans table changes out to every subscriber. It is the server-side
// source of the change stream and doubles as an in-process Feed.
//
// Publish never blocks on a slow subscriber. A subscriber whose buffer is
// full is evicted: its channel is closed after the events already queued
// on it, so it observes the end of the stream instead of a silent gap.
type Broker struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	stopped bool

	queue    chan types.ChangeEvent
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker returns a broker with no subscribers. Call Start before
// publishing.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[Subscriber]struct{}),
		queue:  make(chan types.ChangeEvent, publishQueue),
		stopCh: make(chan struct{}),
	}
}

// Start launches the distribution goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop ends distribution and closes every remaining subscriber. Later
// Publish calls are discarded.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.stopped = true
		for sub := range b.subs {
			close(sub)
		}
		clear(b.subs)
		metrics.FeedSubscribers.Set(0)
	})
}

// Subscribe registers a new subscriber. On a stopped broker the returned
// channel is already closed.
func (b *Broker) Subscribe() Subscriber {
	sub := make(Subscriber, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		close(sub)
		return sub
	}
	b.subs[sub] = struct{}{}
	metrics.FeedSubscribers.Set(float64(len(b.subs)))
	return sub
}

// Unsubscribe removes and closes sub. Unknown or already removed
// subscribers are ignored.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub)
	metrics.FeedSubscribers.Set(float64(len(b.subs)))
}

// Publish stamps event with an ID and timestamp when missing and queues it
// for distribution.
func (b *Broker) Publish(event types.ChangeEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.queue <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case <-b.stopCh:
			return
		case event := <-b.queue:
			b.fanOut(event)
		}
	}
}

func (b *Broker) fanOut(event types.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			delete(b.subs, sub)
			close(sub)
			evicted++
			metrics.EventsDroppedTotal.WithLabelValues("subscriber_full").Inc()
		}
	}
	if evicted > 0 {
		metrics.FeedSubscribers.Set(float64(len(b.subs)))
		logger := log.WithComponent("broker")
		logger.Warn().
			Int("evicted", evicted).
			Str("event_id", event.ID).
			Msg("Evicted subscribers with full buffers")
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
