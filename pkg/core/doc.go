/*
Package core wires the slotsync engine that a presentation layer talks to.

A Core owns one slot store for the configured date range and connects it to a
remote gateway (durable writes) and a change feed (pushed updates from other
clients). Local mutations are applied optimistically and rolled back when the
gateway refuses them; remote changes are merged last-write-wins.

# Architecture

	┌──────────────────── PRESENTATION ────────────────────────┐
	│  GetSchedule   ClaimOrUnclaim   ToggleCompletion          │
	│  Subscribe     GetConnectivity  OnConnectivityChange      │
	└──────────────────────┬────────────────────────────────────┘
	                       │
	┌──────────────────────▼──── pkg/core ─────────────────────┐
	│                                                            │
	│   controller ──apply──▶ schedule.Store ◀──merge── reconciler
	│       │                      │                      ▲     │
	│       │ persist              │ observers            │     │
	│       ▼                      ▼                      │     │
	│   gateway.Gateway       subscribers           events.Feed │
	│                                                     │     │
	│                       connectivity.Monitor ◀─status─┘     │
	└────────────────────────────────────────────────────────────┘

# Lifecycle

Start performs one full fetch and seeds the store, then subscribes to the
feed. When the fetch fails the store stays all-empty and the monitor is
latched disconnected; Start still subscribes and returns an
*InitializationFailure so callers can warn without aborting. Close releases
the feed subscription exactly once and may be called at any point.

# Usage

	c, err := core.New(core.Config{
		Range:          rng,
		Roster:         []string{"Karen", "Hillary"},
		RequestTimeout: 10 * time.Second,
	}, client.NewGateway(endpoint, 10*time.Second), feed)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		log.Logger.Warn().Err(err).Msg("running without initial data")
	}

	result, err := c.ClaimOrUnclaim(ctx, "2025-08-29", types.Morning, "Karen")

# Known Limitations

Mutations on the same slot are not serialized. A rollback restores the
snapshot taken before its own apply, which may overwrite a newer value, and a
reconciled event may replace a pending optimistic value. Events published
between the initial fetch and the subscription can be missed; setting
ResyncInterval bounds how long such gaps last.
*/
package core
