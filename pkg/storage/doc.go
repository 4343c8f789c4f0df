/*
Package storage provides the authoritative feeding schedule table backed by
BoltDB.

The table holds at most one row per (date, time slot). Rows are stored in the
"feeding_schedule" bucket under the key "<date>/<time_slot>" as JSON records,
so a cursor walk returns them in calendar order.

# Write Semantics

	Upsert   new key      → created
	         existing key → updated
	Update   existing key → updated    (missing key: ErrNotFound)
	Remove   existing key → removed    (missing key: no event)

Every successful write is announced on the Publisher given to NewBoltTable,
normally an events.Broker. Errors are returned as *gateway.RemoteFailure so
the table can stand in for a remote gateway in-process.

# Usage

	broker := events.NewBroker()
	broker.Start()

	table, err := storage.NewBoltTable("./slotsync-data", broker)
	if err != nil {
		return err
	}
	defer table.Close()

	karen := "Karen"
	err = table.Upsert(ctx, types.Record{
		Date:     "2025-08-29",
		TimeSlot: types.Morning,
		Person:   &karen,
	})
*/
package storage
