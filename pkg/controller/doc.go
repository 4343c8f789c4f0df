/*
Package controller implements optimistic slot mutations for slotsync.

A mutation is applied to the local store first, so the person who clicked sees
it at once, and only then persisted through the gateway. When the gateway
fails the controller restores the value it replaced and returns a
*SyncFailure describing the rollback. Other clients learn about the change
only through the change feed; the controller never talks to them directly.

# Architecture

Each call follows the same four steps. The snapshot taken in step 2 is the
only state a mutation carries, so concurrent mutations never share rollback
data:

	 ClaimOrUnclaim / ToggleCompletion
	              │
	              ▼
	 1. validate date range, time slot
	              │
	              ▼
	 2. store.Update (one lock hold)
	    read current → decide action → write new value
	    snapshot = current                     ──► observers see new value
	              │
	              ▼
	 3. gateway call (bounded by RequestTimeout)
	       upsert │ remove │ update
	              │
	      ┌───────┴────────┐
	      │ ok             │ error
	      ▼                ▼
	 4a. Result       4b. store.Set(snapshot, SourceRollback)
	                      return *SyncFailure{Cause: *gateway.RemoteFailure}

# Operations

	ClaimOrUnclaim    empty slot     → claimed by actingPerson    (upsert)
	                  claimed slot   → empty, whoever held it     (remove)
	ToggleCompletion  claimed slot   → completed flag flipped     (update)
	                  empty slot     → ActionNone, no gateway call

Claiming writes completed=false. Unclaiming ignores actingPerson, so any
roster member may release any slot.

# Core Components

Controller: holds the store, the gateway, the roster and the request timeout.

	ctrl := controller.New(controller.Config{
		Store:          store,
		Gateway:        gw,
		Roster:         []string{"Karen", "Hillary", "Darlene", "Kelly"},
		RequestTimeout: 10 * time.Second,
	})

Result: what a persisted mutation did. ID is a fresh UUID used to correlate
log lines; Previous and Current are the slot before and after.

SyncFailure: a mutation the gateway rejected. RestoredTo is the value put
back; RemoteFailure() exposes the gateway operation and cause.

# Usage Examples

## Claiming a slot

	res, err := ctrl.ClaimOrUnclaim(ctx, "2025-08-29", types.Morning, "Karen")
	switch {
	case errors.Is(err, controller.ErrMissingIdentity):
		// ask the user who they are
	case err != nil:
		var sf *controller.SyncFailure
		if errors.As(err, &sf) {
			log.Logger.Warn().Err(sf).
				Str("restored", sf.RestoredTo.String()).
				Msg("Claim rolled back")
		}
	default:
		fmt.Println(res.Action, res.Current) // claim {person:"Karen" completed:false}
	}

## Marking a slot done

	res, err := ctrl.ToggleCompletion(ctx, "2025-08-29", types.Morning)
	if err == nil && res.Action == controller.ActionNone {
		fmt.Println("nobody has claimed this slot yet")
	}

A second toggle reopens the slot (ActionReopen).

## Inspecting the gateway failure

	var sf *controller.SyncFailure
	if errors.As(err, &sf) {
		if rf := sf.RemoteFailure(); rf != nil {
			fmt.Println(rf.Op, rf.Key, rf.Cause)
		}
	}

errors.Is also sees through both layers, so errors.Is(err,
context.DeadlineExceeded) reports a timed out request.

# Validation

Requests are rejected before any store write or gateway call:

	ErrDateOutOfRange    date outside the store's range
	ErrInvalidTimeSlot   anything other than morning or evening
	ErrMissingIdentity   claim of an empty slot with no acting person
	ErrUnknownPerson     claim by a name not on the roster (empty roster allows anyone)

Rejections are counted as slotsync_mutations_total{result="rejected"}.

# Design Patterns

## Optimistic apply, pessimistic confirm

The store is written before the network call, but ClaimOrUnclaim and
ToggleCompletion still block until the gateway answers. A caller that wants
fire-and-forget runs them on its own goroutine; observers already saw the
optimistic value.

## Snapshot rollback

Rollback writes the snapshot unconditionally. If a reconciled event or
another mutation changed the slot while the request was in flight, the
rollback overwrites it with the older value. The change feed or the next
resync corrects the store afterwards. Same-slot mutations are not
serialized.

## Echoed writes

The table publishes every write back on the change feed, including this
client's own. The reconciler finds the value already in place and the store
reports no change, so no extra bookkeeping is needed to ignore echoes.

# Troubleshooting

## Claims flicker back to open

The gateway is failing. Look for "Rolled back optimistic mutation" log lines;
the error names the gateway op and cause. slotsync_rollbacks_total{op} counts
them.

## Completion toggles fail with not found

Update requires an existing row. The slot shows as claimed locally but the
table has no row, usually because the feed missed a removal. A resync
(client.resync_interval, or a feed reconnect) repairs the local view.

# Monitoring Metrics

	slotsync_mutations_total{op,result}          ok, rolled_back, rejected, noop
	slotsync_rollbacks_total{op}                 claim, unclaim, complete, reopen
	slotsync_gateway_request_duration_seconds{op}

# See Also

  - pkg/schedule for the store Update primitive
  - pkg/gateway for RemoteFailure
  - pkg/reconciler for how remote changes reach the store
*/
package controller
