/*
Package connectivity tracks whether the change feed is live and when the
last remote update was reconciled.

Clients show this as the status line under the schedule grid. A
disconnected feed means other people's changes are not arriving, so the
grid may be stale even though local claims still work.

# States

	            NewMonitor
	                │
	                ▼
	          ┌───────────┐  StatusDisconnected   ┌──────────────┐
	          │ connected │ ────────────────────► │ disconnected │
	          │           │ ◄──────────────────── │              │
	          └─────┬─────┘  StatusConnected      └──────┬───────┘
	                │                                    │
	                └────────── ForceDisconnected ───────┤
	                                                     ▼
	                                         ┌───────────────────────┐
	                                         │ disconnected (latched)│
	                                         │ status ignored        │
	                                         └───────────────────────┘

The monitor starts connected so no warning flashes while the first dial is
in flight. ForceDisconnected is called when the startup fetch or subscribe
fails; the latch holds for the rest of the process, and the Cause field
carries the error for display.

# Usage

	monitor := connectivity.NewMonitor()
	monitor.OnChange(func(s connectivity.Snapshot) {
		fmt.Println("feed", s.State, s.Cause)
	})

	sub, _ := feed.Subscribe(onEvent, monitor.HandleStatus)

	// the reconciler touches the monitor after each merged event
	monitor.Touch(time.Now())

	snap := monitor.State()
	if !snap.LastUpdate.IsZero() {
		fmt.Println("last update", snap.LastUpdate)
	}

Observers are called only on transitions, never for a repeated status or
for Touch.

# Monitoring Metrics

	slotsync_feed_connected   1 while connected, 0 otherwise

Each transition also updates the "feed" component of the metrics health
registry, which gates /ready in the watch command.
*/
package connectivity
