/*
Package reconciler merges remote change events into the local slot store and
repairs the store with full fetches.

The change feed is the only path by which one client learns about another
client's writes. The reconciler applies each event with last-write-wins
semantics: whatever the feed delivers last for a slot is what the store
shows, including over a local optimistic value that has not been confirmed
yet. When the feed cannot be trusted to have delivered everything, a resync
replaces the whole store with the table's current rows.

# Architecture

	        change feed (websocket or in-process broker)
	                         │ ChangeEvent, in delivery order
	                         ▼
	┌────────────────────────────────────────────────────┐
	│                 Reconciler.Handle                  │
	│  kind valid? ── no ──► drop "unknown_kind"         │
	│  completed without person? ──► drop "malformed"    │
	│  store.Update(SourceReconcile)                     │
	│     out of range ──► drop "out_of_range"           │
	│  monitor.Touch(now)                                │
	└────────────────────────────────────────────────────┘

	┌────────────────────────────────────────────────────┐
	│                  resync loop (run)                 │
	│  ticker (ResyncInterval > 0) ─┐                    │
	│  RequestResync() ─────────────┼──► gateway.FetchAll│
	│                               │    store.Replace   │
	│  Stop() ──► cancel, exit      │    (SourceResync)  │
	└────────────────────────────────────────────────────┘

# Event Semantics

	created   slot := event snapshot
	updated   slot := event snapshot
	removed   slot := empty; the old snapshot's person and flag are ignored

An event whose snapshot equals the current slot still counts as reconciled
and still touches the monitor, but the store reports no change and no
observer runs. A client's own writes come back this way.

Roster membership is not checked here. The table is the source of truth, so
a name that is not on the local roster is still shown.

# Core Components

Reconciler: created once per core.

	r := reconciler.NewReconciler(reconciler.Config{
		Store:          store,
		Gateway:        gw,
		Monitor:        monitor,
		ResyncInterval: time.Minute, // 0 disables the ticker
	})
	r.Start()
	defer r.Stop()

Toucher: anything that wants the time of the last successful merge. The
connectivity monitor implements it to show "last update" in the status line.

# Usage Examples

## Feeding events

	sub, err := feed.Subscribe(
		func(ev types.ChangeEvent) { r.Handle(ev) },
		monitor.HandleStatus,
	)

Handle reports whether the event was applied, which tests use; production
callers ignore it.

## Forcing a resync

	r.Resync(ctx) // synchronous, returns the fetch error

	r.RequestResync() // asynchronous, runs on the loop goroutine

RequestResync never blocks. Requests that arrive while one is pending
collapse into it. The core calls it when the feed reports connected after a
disconnect, because events published while the feed was down are never
replayed.

## Reading the last merge time

	if at := r.LastReconciledAt(); !at.IsZero() {
		fmt.Println("last update", at.Format(time.Kitchen))
	}

# Design Patterns

## Last write wins

No version numbers or timestamps are compared. Events are applied in the
order the feed delivers them, and the feed delivers them in the order the
table committed them. Two clients claiming the same empty slot both succeed
at the table; the later event decides who every client ends up showing.

## Resync as repair

Replace swaps in a freshly built map, so slots whose rows were deleted while
nobody was listening are reset too. A failed fetch leaves the store as it
was; the next tick or reconnect tries again.

## Loop lifecycle

The loop starts only when a gateway is configured. Stop closes stopCh, which
also cancels a fetch in flight, and waits for the goroutine to exit. Stop is
safe to call more than once.

# Performance Characteristics

	Handle   O(1): one store Update
	Resync   one FetchAll plus O(days + records) in Replace

Each resync is timed into slotsync_resync_duration_seconds.

# Troubleshooting

## A client shows a value the table does not have

Check slotsync_events_dropped_total{reason}. "subscriber_full" on the server
means a client fell behind and was disconnected; its reconnect triggers a
resync. A steady "out_of_range" count means the clients disagree about
schedule.start_date and schedule.end_date.

## Resync keeps failing

Look for "Resync failed" warnings with the trigger field ("interval" or
"requested"). The store keeps its last good state meanwhile.

# Monitoring Metrics

	slotsync_events_reconciled_total{kind}
	slotsync_events_dropped_total{reason}    unknown_kind, malformed, out_of_range
	slotsync_resync_duration_seconds

# See Also

  - pkg/events for the feed interface and the wire payload
  - pkg/connectivity for the Toucher implementation
  - pkg/core for the reconnect-triggered resync
*/
package reconciler
