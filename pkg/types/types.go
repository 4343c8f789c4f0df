package types

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-day key format
const DateLayout = "2006-01-02"

// Date is a canonical calendar-day key (YYYY-MM-DD)
type Date string

// ParseDate parses and canonicalizes a calendar day
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for constants and tests
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's location
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// AddDays returns the date n days later (or earlier for negative n)
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other
func (d Date) Before(other Date) bool {
	return d < other
}

func (d Date) String() string {
	return string(d)
}

// TimeSlot identifies one half of a day
type TimeSlot string

const (
	Morning TimeSlot = "morning"
	Evening TimeSlot = "evening"
)

// TimeSlots lists every slot of a day in display order
var TimeSlots = []TimeSlot{Morning, Evening}

// ParseTimeSlot validates a time slot name
func ParseTimeSlot(s string) (TimeSlot, error) {
	ts := TimeSlot(s)
	if !ts.Valid() {
		return "", fmt.Errorf("invalid time slot %q", s)
	}
	return ts, nil
}

// Valid reports whether ts is morning or evening
func (ts TimeSlot) Valid() bool {
	return ts == Morning || ts == Evening
}

// Slot is one claimable assignment.
// A completed slot always has a person.
type Slot struct {
	Person    *string `json:"person"`
	Completed bool    `json:"completed"`
}

// EmptySlot returns the canonical unclaimed value
func EmptySlot() Slot {
	return Slot{}
}

// ClaimedBy returns an uncompleted slot held by person
func ClaimedBy(person string) Slot {
	p := person
	return Slot{Person: &p}
}

// Claimed reports whether the slot has an assignee
func (s Slot) Claimed() bool {
	return s.Person != nil
}

// PersonName returns the assignee or ""
func (s Slot) PersonName() string {
	if s.Person == nil {
		return ""
	}
	return *s.Person
}

// Equal compares by value
func (s Slot) Equal(other Slot) bool {
	if s.Completed != other.Completed {
		return false
	}
	if s.Person == nil || other.Person == nil {
		return s.Person == nil && other.Person == nil
	}
	return *s.Person == *other.Person
}

// Clone returns a copy that shares no memory with s
func (s Slot) Clone() Slot {
	if s.Person == nil {
		return Slot{Completed: s.Completed}
	}
	return ClaimedBy(*s.Person).withCompleted(s.Completed)
}

func (s Slot) withCompleted(completed bool) Slot {
	s.Completed = completed
	return s
}

// WithCompleted returns a copy of s with the completed flag set
func (s Slot) WithCompleted(completed bool) Slot {
	return s.Clone().withCompleted(completed)
}

func (s Slot) String() string {
	if s.Person == nil {
		return "{person:null completed:" + fmt.Sprint(s.Completed) + "}"
	}
	return fmt.Sprintf("{person:%q completed:%v}", *s.Person, s.Completed)
}

// DayEntry holds both slots of one date
type DayEntry struct {
	Date    Date `json:"date"`
	Morning Slot `json:"morning"`
	Evening Slot `json:"evening"`
}

// EmptyDay returns the canonical entry for a date with no records
func EmptyDay(date Date) DayEntry {
	return DayEntry{Date: date}
}

// Slot returns the value for ts
func (d DayEntry) Slot(ts TimeSlot) Slot {
	if ts == Evening {
		return d.Evening
	}
	return d.Morning
}

// WithSlot returns a copy of d with ts replaced, the sibling untouched
func (d DayEntry) WithSlot(ts TimeSlot, s Slot) DayEntry {
	switch ts {
	case Morning:
		d.Morning = s.Clone()
	case Evening:
		d.Evening = s.Clone()
	}
	return d
}

// Clone deep-copies the entry
func (d DayEntry) Clone() DayEntry {
	return DayEntry{Date: d.Date, Morning: d.Morning.Clone(), Evening: d.Evening.Clone()}
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start Date `json:"start_date" yaml:"start_date"`
	End   Date `json:"end_date" yaml:"end_date"`
}

// NewDateRange validates start <= end
func NewDateRange(start, end Date) (DateRange, error) {
	if _, err := ParseDate(string(start)); err != nil {
		return DateRange{}, err
	}
	if _, err := ParseDate(string(end)); err != nil {
		return DateRange{}, err
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: start, End: end}, nil
}

// Contains reports whether d lies within the range
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !r.End.Before(d)
}

// Dates lists every date in the range in order
func (r DateRange) Dates() []Date {
	var dates []Date
	for d := r.Start; !r.End.Before(d); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Len is the number of days in the range
func (r DateRange) Len() int {
	return int(r.End.Time().Sub(r.Start.Time()).Hours()/24) + 1
}

// Schedule maps every date in the configured range to its entry
type Schedule struct {
	Range DateRange
	Days  map[Date]DayEntry
}

// Day returns the entry for date, or the canonical empty entry
func (s Schedule) Day(date Date) DayEntry {
	if entry, ok := s.Days[date]; ok {
		return entry
	}
	return EmptyDay(date)
}

// Entries returns the entries in date order
func (s Schedule) Entries() []DayEntry {
	dates := s.Range.Dates()
	entries := make([]DayEntry, 0, len(dates))
	for _, d := range dates {
		entries = append(entries, s.Day(d))
	}
	return entries
}

// Record is one persisted row of the remote table
type Record struct {
	Date      Date     `json:"date"`
	TimeSlot  TimeSlot `json:"time_slot"`
	Person    *string  `json:"person"`
	Completed bool     `json:"completed"`
}

// Key returns the table key of the record
func (r Record) Key() SlotKey {
	return SlotKey{Date: r.Date, TimeSlot: r.TimeSlot}
}

// Slot returns the record's slot value
func (r Record) Slot() Slot {
	return Slot{Person: r.Person, Completed: r.Completed}.Clone()
}

// SlotKey is the (date, time slot) identity shared by the store and the table
type SlotKey struct {
	Date     Date
	TimeSlot TimeSlot
}

func (k SlotKey) String() string {
	return string(k.Date) + "/" + string(k.TimeSlot)
}

// ChangeKind is the kind of a remote change
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Valid reports whether k is a known kind
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeCreated, ChangeUpdated, ChangeRemoved:
		return true
	}
	return false
}

// ChangeEvent is a validated notification from the change feed.
// Record is the new snapshot for created/updated and the old one for removed.
type ChangeEvent struct {
	ID        string
	Kind      ChangeKind
	Record    Record
	Timestamp time.Time
}

// SlotStats counts slots by state. Completed slots are not counted as claimed.
type SlotStats struct {
	Open      int
	Claimed   int
	Completed int
}
