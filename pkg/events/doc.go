/*
Package events carries table changes from the authoritative store to every
connected client.

# Architecture

	┌─────── server ───────┐        ┌──────── client ────────┐
	│ storage.BoltTable     │        │ client.Feed            │
	│      │ Publish        │        │   Decode(Payload)      │
	│      ▼                │  ws    │      │                 │
	│ Broker ──Encode──────────────────────▶ EventHandler     │
	│      │                │        │                        │
	│      └─ SubscribeFeed (in-process clients)              │
	└───────────────────────┘        └────────────────────────┘

# Core Components

Broker:
  - Buffered fan-out (100 queued, 50 per subscriber)
  - Stamps an ID and timestamp on events that lack one
  - A subscriber whose buffer is full is evicted: its channel closes after
    the events already queued, the in-process feed reports disconnected and
    the websocket stream ends with GoingAway so the client redials
  - Stop closes every remaining subscriber
  - Doubles as an in-process Feed via AsFeed

Feed and Subscription:
  - Feed.Subscribe delivers events on a single goroutine in arrival order
  - Status transitions (connected, disconnected) arrive on StatusHandler
  - Subscription.Unsubscribe is idempotent

Payload:
  - Untyped wire form {id, kind, new, old, timestamp}
  - Decode narrows it: kind must be created, updated or removed; created and
    updated need "new", removed needs "old"; date and time slot must parse
  - Only the key of a removed snapshot is kept

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub, _ := broker.SubscribeFeed(
		func(ev types.ChangeEvent) { fmt.Println(ev.Kind, ev.Record.Key()) },
		func(s events.Status) { fmt.Println("feed", s) },
	)
	defer sub.Unsubscribe()
*/
package events
