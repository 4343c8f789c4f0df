package schedule

import (
	"sync"

	"github.com/cuemby/slotsync/pkg/types"
)

// Source identifies which path wrote a slot
type Source string

const (
	SourceSeed       Source = "seed"
	SourceOptimistic Source = "optimistic"
	SourceRollback   Source = "rollback"
	SourceReconcile  Source = "reconcile"
	SourceResync     Source = "resync"
)

// Change describes one visible slot transition
type Change struct {
	Key    types.SlotKey
	Old    types.Slot
	New    types.Slot
	Source Source
}

// Observer is notified after every visible slot transition
type Observer func(Change)

// UpdateFunc computes a slot's next value from its current one.
// Returning an error aborts the update without writing.
type UpdateFunc func(current types.Slot) (types.Slot, error)

// Store is the in-memory cache of every slot in the configured range.
// Every date in the range always has an entry; dates outside it are never
// materialized.
type Store struct {
	rng  types.DateRange
	mu   sync.RWMutex
	days map[types.Date]types.DayEntry

	// notifyMu is held by writers from before they take mu until their
	// observers return, so observers see changes in write order. Lock
	// order is notifyMu, then mu; readers take only mu.
	notifyMu  sync.Mutex
	obsMu     sync.RWMutex
	observers map[uint64]Observer
	nextObsID uint64
}

// NewStore creates a store with an empty entry for every date in rng
func NewStore(rng types.DateRange) *Store {
	return &Store{
		rng:       rng,
		days:      emptyDays(rng),
		observers: make(map[uint64]Observer),
	}
}

func emptyDays(rng types.DateRange) map[types.Date]types.DayEntry {
	days := make(map[types.Date]types.DayEntry, rng.Len())
	for _, d := range rng.Dates() {
		days[d] = types.EmptyDay(d)
	}
	return days
}

// Range returns the configured date range
func (s *Store) Range() types.DateRange {
	return s.rng
}

// Get returns the entry for date. It never fails: dates without a record,
// and dates outside the range, yield the canonical empty entry.
func (s *Store) Get(date types.Date) types.DayEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.days[date]; ok {
		return entry.Clone()
	}
	return types.EmptyDay(date)
}

// GetSlot returns one slot of date
func (s *Store) GetSlot(date types.Date, ts types.TimeSlot) types.Slot {
	return s.Get(date).Slot(ts)
}

// Set replaces one slot, leaving its sibling untouched. It reports whether
// the visible value changed; writes outside the range are ignored.
func (s *Store) Set(date types.Date, ts types.TimeSlot, value types.Slot, source Source) bool {
	_, _, changed, err := s.Update(date, ts, func(types.Slot) (types.Slot, error) {
		return value, nil
	}, source)
	return err == nil && changed
}

// Update reads, computes and writes one slot under a single lock hold so no
// other writer can interleave between the read and the write.
func (s *Store) Update(date types.Date, ts types.TimeSlot, fn UpdateFunc, source Source) (old, updated types.Slot, changed bool, err error) {
	if !ts.Valid() {
		return old, updated, false, ErrInvalidTimeSlot
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	entry, ok := s.days[date]
	if !ok {
		s.mu.Unlock()
		return old, updated, false, ErrOutOfRange
	}

	old = entry.Slot(ts).Clone()
	updated, err = fn(old.Clone())
	if err != nil {
		s.mu.Unlock()
		return old, old, false, err
	}

	changed = !old.Equal(updated)
	if changed {
		s.days[date] = entry.WithSlot(ts, updated)
	}
	s.mu.Unlock()

	if changed {
		s.notify(Change{
			Key:    types.SlotKey{Date: date, TimeSlot: ts},
			Old:    old,
			New:    updated.Clone(),
			Source: source,
		})
	}
	return old, updated, changed, nil
}

// Replace resets the store to exactly the given records: slots with a
// record take its value, every other slot becomes empty. Records outside
// the range are skipped. It returns the number of skipped records.
func (s *Store) Replace(records []types.Record, source Source) int {
	next := emptyDays(s.rng)
	skipped := 0
	for _, rec := range records {
		entry, ok := next[rec.Date]
		if !ok || !rec.TimeSlot.Valid() {
			skipped++
			continue
		}
		next[rec.Date] = entry.WithSlot(rec.TimeSlot, rec.Slot())
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	var changes []Change
	s.mu.Lock()
	for date, entry := range next {
		prev := s.days[date]
		for _, ts := range types.TimeSlots {
			if !prev.Slot(ts).Equal(entry.Slot(ts)) {
				changes = append(changes, Change{
					Key:    types.SlotKey{Date: date, TimeSlot: ts},
					Old:    prev.Slot(ts).Clone(),
					New:    entry.Slot(ts).Clone(),
					Source: source,
				})
			}
		}
	}
	s.days = next
	s.mu.Unlock()

	for _, c := range changes {
		s.notify(c)
	}
	return skipped
}

// Snapshot returns a deep copy of the whole schedule
func (s *Store) Snapshot() types.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make(map[types.Date]types.DayEntry, len(s.days))
	for d, entry := range s.days {
		days[d] = entry.Clone()
	}
	return types.Schedule{Range: s.rng, Days: days}
}

// Stats counts slots by state
func (s *Store) Stats() types.SlotStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats types.SlotStats
	for _, entry := range s.days {
		for _, ts := range types.TimeSlots {
			slot := entry.Slot(ts)
			switch {
			case slot.Completed:
				stats.Completed++
			case slot.Claimed():
				stats.Claimed++
			default:
				stats.Open++
			}
		}
	}
	return stats
}

// Subscribe registers an observer and returns a func that removes it.
// Observers run on the writer's goroutine after the store lock is released,
// one change at a time and in write order. They may read the store but must
// not write to it; other writers wait until they return.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.RUnlock()

	for _, fn := range observers {
		fn(c)
	}
}
