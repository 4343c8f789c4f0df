package events

import (
	"sync"

	"github.com/cuemby/slotsync/pkg/types"
)

// Status is a change feed connectivity transition
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// EventHandler receives change events in delivery order
type EventHandler func(types.ChangeEvent)

// StatusHandler receives connectivity transitions
type StatusHandler func(Status)

// Feed is a subscribable stream of table changes
type Feed interface {
	// Subscribe starts delivery. Events arrive on a single goroutine in the
	// order the feed received them; status transitions are delivered
	// independently of events.
	Subscribe(onEvent EventHandler, onStatus StatusHandler) (Subscription, error)
}

// Subscription is a live feed subscription
type Subscription interface {
	// Unsubscribe stops delivery and releases resources. Safe to call more
	// than once and before any event arrived.
	Unsubscribe()
}

// SubscribeFeed attaches an in-process subscriber to the broker. The broker is
// always reachable, so StatusConnected is reported straight away. Handlers
// must not call Unsubscribe themselves.
func (b *Broker) SubscribeFeed(onEvent EventHandler, onStatus StatusHandler) (Subscription, error) {
	sub := b.Subscribe()
	bs := &brokerSubscription{
		broker: b,
		sub:    sub,
		done:   make(chan struct{}),
	}

	if onStatus != nil {
		onStatus(StatusConnected)
	}

	go func() {
		defer close(bs.done)
		for event := range sub {
			if onEvent != nil {
				onEvent(event)
			}
		}
		if onStatus != nil {
			onStatus(StatusDisconnected)
		}
	}()

	return bs, nil
}

// AsFeed adapts the broker to the Feed interface
func (b *Broker) AsFeed() Feed {
	return brokerFeed{b}
}

type brokerFeed struct {
	b *Broker
}

func (f brokerFeed) Subscribe(onEvent EventHandler, onStatus StatusHandler) (Subscription, error) {
	return f.b.SubscribeFeed(onEvent, onStatus)
}

type brokerSubscription struct {
	broker *Broker
	sub    Subscriber
	done   chan struct{}
	once   sync.Once
}

func (s *brokerSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.Unsubscribe(s.sub)
		<-s.done
	})
}
