/*
Package types defines the slot data model shared by every slotsync package.

# Model

	DateRange  {Start, End}                  inclusive calendar days
	   │
	   ▼ one per date
	DayEntry   {Date, Morning, Evening}
	               │
	               ▼
	Slot       {Person *string, Completed bool}

	Record     {Date, TimeSlot, Person, Completed}   one table row
	SlotKey    {Date, TimeSlot}                      "2025-08-29/morning"
	ChangeEvent{ID, Kind, Record, Timestamp}         created | updated | removed

A Slot is empty when Person is nil. A completed slot always has a person:
the controller only toggles claimed slots, and the reconciler and the table
reject records that are completed without one.

# Dates

Date is a YYYY-MM-DD string. Dates compare and sort as strings, and all
calendar math goes through time.Time in UTC so daylight saving changes never
skip or repeat a day:

	d := types.MustParseDate("2025-08-29")
	next := d.AddDays(1)                 // 2025-08-30
	rng, err := types.NewDateRange("2025-08-29", "2025-09-19")
	for _, day := range rng.Dates() {    // 22 dates, in order
		...
	}

NewDateRange rejects an end before the start.

# Value semantics

Slot holds a pointer, so Equal compares the names rather than the pointers
and Clone copies the name. Code that hands slots across goroutines or out of
a store clones them first.

	a := types.ClaimedBy("Karen")
	b := types.ClaimedBy("Karen")
	a.Equal(b)                  // true
	a.WithCompleted(true)       // {person:"Karen" completed:true}
	types.EmptySlot().Claimed() // false
*/
package types
