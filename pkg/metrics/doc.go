/*
Package metrics exposes slotsync's Prometheus collectors and health state.

# Metrics Catalog

Mutations:
  - slotsync_mutations_total{op,result}
  - slotsync_rollbacks_total{op}
  - slotsync_gateway_request_duration_seconds{op}

Reconciliation:
  - slotsync_events_reconciled_total{kind}
  - slotsync_events_dropped_total{reason}
  - slotsync_resync_duration_seconds
  - slotsync_feed_connected

Store and table:
  - slotsync_slots_total{state} (open, claimed, completed), sampled by Collector
  - slotsync_table_writes_total{op}
  - slotsync_feed_subscribers

# Health

Components register with RegisterComponent and UpdateComponent. The server
reports "table"; clients report "store" and "feed". Readiness fails while any
critical component is unhealthy (see SetCriticalComponents).

# Usage

	timer := metrics.NewTimer()
	err := gw.Upsert(ctx, rec)
	timer.ObserveDurationVec(metrics.GatewayRequestDuration, "upsert")

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/ready", metrics.ReadyHandler())
*/
package metrics
