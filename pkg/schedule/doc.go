/*
Package schedule holds the in-memory slot store that every slotsync client
renders from.

The store is a complete, always-readable picture of the configured date
range. Every date in the range has an entry with a morning and an evening
slot from the moment the store is created, reads never fail, and every
visible change is announced to observers. Local optimistic writes, rollbacks,
reconciled remote events and full resyncs all land here; the Source on each
change says which path wrote it.

# Architecture

The store is a map of DayEntry values guarded by one RWMutex. Writers go
through Update, which reads, computes and writes a slot under a single lock
hold. Every writer first takes a notify lock and keeps it until its
observers return, so observers run one at a time and in write order while
readers only ever wait on the store lock:

	┌──────────────┐  ┌──────────────┐  ┌──────────────┐
	│  controller  │  │  reconciler  │  │    resync    │
	│ (optimistic, │  │ (reconcile)  │  │   (Replace)  │
	│  rollback)   │  │              │  │              │
	└──────┬───────┘  └──────┬───────┘  └──────┬───────┘
	       │                 │                 │
	       ▼                 ▼                 ▼
	┌────────────────────────────────────────────────────┐
	│                   schedule.Store                   │
	│   mu (RWMutex):   days map[Date]DayEntry           │
	│   notifyMu:       writer order + observer delivery │
	└───────────────────────────┬────────────────────────┘
	                            │ Change{Key, Old, New, Source}
	                            ▼
	              observers (CLI grid, metrics gauges)

# Core Components

Store: the cache itself.

	rng, _ := types.NewDateRange("2025-08-29", "2025-09-19")
	store := schedule.NewStore(rng)

	entry := store.Get("2025-08-29")          // never fails
	slot := store.GetSlot("2025-08-29", types.Morning)
	sched := store.Snapshot()                 // deep copy of every day

Source: which path produced a change.

	SourceSeed         initial fetch at startup
	SourceOptimistic   controller applied a mutation before persisting it
	SourceRollback     controller restored a snapshot after a gateway failure
	SourceReconcile    change feed event merged by the reconciler
	SourceResync       periodic or reconnect-triggered full fetch

Change: one visible slot transition. Writes that leave a slot equal to its
current value produce no Change.

# Usage Examples

## Atomic read-modify-write

Update hands the current value to a function and writes what it returns.
Returning an error aborts the write:

	old, updated, changed, err := store.Update("2025-08-29", types.Morning,
		func(cur types.Slot) (types.Slot, error) {
			if cur.Claimed() {
				return cur, errAlreadyClaimed
			}
			return types.ClaimedBy("Karen"), nil
		}, schedule.SourceOptimistic)

The controller builds claim, unclaim and completion toggles on this so the
snapshot it may later roll back to is exactly the value it replaced.

## Replacing everything

Replace resets the store to a set of records. Slots without a record become
empty; records outside the range are skipped and counted:

	records, _ := gw.FetchAll(ctx)
	skipped := store.Replace(records, schedule.SourceResync)

Only slots whose value actually differs produce a Change.

## Observing changes

	unsubscribe := store.Subscribe(func(c schedule.Change) {
		fmt.Printf("[%s] %s: %s -> %s\n", c.Source, c.Key, c.Old, c.New)
	})
	defer unsubscribe()

Observers may read the store (Get, Snapshot, Stats) but must not write to it:
a write from inside an observer would wait on the notify lock it is already
running under. Other writers wait while an observer runs, so observers should
be quick.

## Counting slots

	stats := store.Stats()
	fmt.Printf("%d open, %d claimed, %d completed\n",
		stats.Open, stats.Claimed, stats.Completed)

# Design Patterns

## Complete by construction

NewStore materializes every date in the range up front and Replace rebuilds
the full map before swapping it in. There is no "missing day" state for a
renderer to handle, and dates outside the range are never created: Update
returns ErrOutOfRange and Get returns an empty entry without storing it.

## Copy on the way in and out

Slot values are cloned when stored and when returned. Callers can keep and
modify what they get back without touching the cache.

## Ordered notification

The store lock is held only for the map access. Observer delivery happens
after it is released, so slow observers never block readers. Writers are
ordered by the notify lock, taken before the store lock and released after
the last observer returns. Two writers on the same key therefore notify in
the order they wrote, and the last Change delivered for a key always matches
the stored value.

# Performance Characteristics

	Get, GetSlot      O(1), read lock
	Update, Set       O(1) under the write lock, plus observer time under the notify lock
	Snapshot, Stats   O(days), read lock
	Replace           O(days + records) outside the lock, O(days) under it

A three-week window is 44 slots, so whole-store operations are cheap enough to
run on every render.

# Troubleshooting

## Writes are ignored

Set returns false and Update returns ErrOutOfRange for dates outside the
configured range. Check schedule.start_date and schedule.end_date in the
config file.

## An observer deadlocks

The observer is writing to the store. Move the write to another goroutine or
out of the observer entirely.

# Monitoring Metrics

The store itself exports nothing. metrics.Collector samples Stats into
slotsync_slots_total{state} for the watch command.

# See Also

  - pkg/controller for optimistic writes and rollback
  - pkg/reconciler for remote events and resync
  - pkg/types for Slot, DayEntry and DateRange
*/
package schedule
