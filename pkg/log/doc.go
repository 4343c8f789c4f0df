/*
Package log provides structured logging for slotsync using zerolog.

A single global Logger is configured once by Init and shared by every
component. Components derive child loggers carrying their own fields so
that a rollback or a dropped change event can be traced back to the slot
that caused it.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("reconciler")
	logger.Debug().Str("event_id", ev.ID).Msg("Applied change")

	slotLog := log.WithSlot("controller", "2025-08-29", "morning")
	slotLog.Warn().Err(err).Msg("Rolled back optimistic claim")

# Fields

	component   emitting package (controller, reconciler, feed, table, api)
	date        calendar day key, YYYY-MM-DD
	time_slot   morning or evening
	op          gateway operation (fetch_all, upsert, update, remove)
	event_id    change event identifier

Console output is the default; JSON output is enabled with log.json in the
config file or --log-json on the command line.
*/
package log
