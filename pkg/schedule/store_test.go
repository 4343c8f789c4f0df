package schedule

import (
	"errors"
	"sync"
	"testing"

	"github.com/cuemby/slotsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange(t *testing.T) types.DateRange {
	t.Helper()
	rng, err := types.NewDateRange("2025-08-29", "2025-09-19")
	require.NoError(t, err)
	return rng
}

func person(name string) *string { return &name }

func TestNewStoreRangeCompleteness(t *testing.T) {
	store := NewStore(testRange(t))
	snap := store.Snapshot()

	require.Len(t, snap.Days, 22)
	for _, d := range store.Range().Dates() {
		entry, ok := snap.Days[d]
		require.True(t, ok, "missing entry for %s", d)
		assert.Equal(t, d, entry.Date)
		assert.True(t, entry.Morning.Equal(types.EmptySlot()))
		assert.True(t, entry.Evening.Equal(types.EmptySlot()))
	}
}

func TestGetNeverFails(t *testing.T) {
	store := NewStore(testRange(t))

	entry := store.Get("2030-01-01")
	assert.Equal(t, types.Date("2030-01-01"), entry.Date)
	assert.False(t, entry.Morning.Claimed())
	assert.False(t, entry.Evening.Claimed())
}

func TestSetLeavesSiblingUntouched(t *testing.T) {
	store := NewStore(testRange(t))

	assert.True(t, store.Set("2025-08-29", types.Evening, types.ClaimedBy("Hillary").WithCompleted(true), SourceReconcile))
	assert.True(t, store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceOptimistic))

	entry := store.Get("2025-08-29")
	assert.Equal(t, "Karen", entry.Morning.PersonName())
	assert.False(t, entry.Morning.Completed)
	assert.Equal(t, "Hillary", entry.Evening.PersonName())
	assert.True(t, entry.Evening.Completed)
}

func TestSetOutsideRangeIgnored(t *testing.T) {
	store := NewStore(testRange(t))

	assert.False(t, store.Set("2025-09-20", types.Morning, types.ClaimedBy("Karen"), SourceReconcile))
	_, ok := store.Snapshot().Days["2025-09-20"]
	assert.False(t, ok)
}

func TestSetSameValueIsNotAChange(t *testing.T) {
	store := NewStore(testRange(t))
	var changes []Change
	store.Subscribe(func(c Change) { changes = append(changes, c) })

	assert.True(t, store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceOptimistic))
	assert.False(t, store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceReconcile))

	require.Len(t, changes, 1)
	assert.Equal(t, SourceOptimistic, changes[0].Source)
	assert.False(t, changes[0].Old.Claimed())
	assert.Equal(t, "Karen", changes[0].New.PersonName())
}

func TestUpdate(t *testing.T) {
	store := NewStore(testRange(t))
	store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceSeed)

	old, updated, changed, err := store.Update("2025-08-29", types.Morning, func(cur types.Slot) (types.Slot, error) {
		return cur.WithCompleted(!cur.Completed), nil
	}, SourceOptimistic)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, old.Completed)
	assert.True(t, updated.Completed)
	assert.True(t, store.GetSlot("2025-08-29", types.Morning).Completed)

	abort := errors.New("abort")
	_, _, changed, err = store.Update("2025-08-29", types.Morning, func(types.Slot) (types.Slot, error) {
		return types.EmptySlot(), abort
	}, SourceOptimistic)
	assert.ErrorIs(t, err, abort)
	assert.False(t, changed)
	assert.True(t, store.GetSlot("2025-08-29", types.Morning).Claimed())

	_, _, _, err = store.Update("2024-01-01", types.Morning, func(s types.Slot) (types.Slot, error) { return s, nil }, SourceOptimistic)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, _, _, err = store.Update("2025-08-29", "noon", func(s types.Slot) (types.Slot, error) { return s, nil }, SourceOptimistic)
	assert.ErrorIs(t, err, ErrInvalidTimeSlot)
}

func TestReplace(t *testing.T) {
	store := NewStore(testRange(t))
	store.Set("2025-08-30", types.Evening, types.ClaimedBy("Kelly"), SourceOptimistic)

	var changes []Change
	store.Subscribe(func(c Change) { changes = append(changes, c) })

	skipped := store.Replace([]types.Record{
		{Date: "2025-08-29", TimeSlot: types.Morning, Person: person("Karen")},
		{Date: "2025-08-31", TimeSlot: types.Evening, Person: person("Darlene"), Completed: true},
		{Date: "2025-12-25", TimeSlot: types.Morning, Person: person("Karen")},
		{Date: "2025-08-29", TimeSlot: "noon", Person: person("Karen")},
	}, SourceSeed)

	assert.Equal(t, 2, skipped)
	assert.Equal(t, "Karen", store.GetSlot("2025-08-29", types.Morning).PersonName())
	assert.True(t, store.GetSlot("2025-08-31", types.Evening).Completed)
	assert.False(t, store.GetSlot("2025-08-30", types.Evening).Claimed(), "slots without a record reset to empty")
	assert.Len(t, store.Snapshot().Days, 22)
	assert.Len(t, changes, 3)
}

func TestSnapshotIsIsolated(t *testing.T) {
	store := NewStore(testRange(t))
	store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceSeed)

	snap := store.Snapshot()
	*snap.Days["2025-08-29"].Morning.Person = "Mallory"

	assert.Equal(t, "Karen", store.GetSlot("2025-08-29", types.Morning).PersonName())
}

func TestStats(t *testing.T) {
	store := NewStore(testRange(t))
	store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceSeed)
	store.Set("2025-08-29", types.Evening, types.ClaimedBy("Kelly").WithCompleted(true), SourceSeed)

	stats := store.Stats()
	assert.Equal(t, types.SlotStats{Open: 42, Claimed: 1, Completed: 1}, stats)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	store := NewStore(testRange(t))
	count := 0
	unsubscribe := store.Subscribe(func(Change) { count++ })

	store.Set("2025-08-29", types.Morning, types.ClaimedBy("Karen"), SourceSeed)
	unsubscribe()
	unsubscribe()
	store.Set("2025-08-29", types.Morning, types.EmptySlot(), SourceSeed)

	assert.Equal(t, 1, count)
}

func TestConcurrentWritersOnDifferentSlots(t *testing.T) {
	store := NewStore(testRange(t))
	dates := store.Range().Dates()

	var wg sync.WaitGroup
	for _, d := range dates {
		for _, ts := range types.TimeSlots {
			wg.Add(1)
			go func(d types.Date, ts types.TimeSlot) {
				defer wg.Done()
				store.Set(d, ts, types.ClaimedBy("Karen"), SourceOptimistic)
			}(d, ts)
		}
	}
	wg.Wait()

	assert.Equal(t, types.SlotStats{Claimed: 44}, store.Stats())
}

func TestObserversSeeSameKeyWritesInOrder(t *testing.T) {
	store := NewStore(testRange(t))
	roster := []string{"Karen", "Hillary", "Darlene", "Kelly"}

	var (
		changes []Change
		seen    []types.Slot
	)
	store.Subscribe(func(c Change) {
		changes = append(changes, c)
		seen = append(seen, store.GetSlot(c.Key.Date, c.Key.TimeSlot))
	})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			store.Set("2025-08-29", types.Morning, types.ClaimedBy(name), SourceReconcile)
		}(roster[i%len(roster)])
	}
	wg.Wait()

	require.NotEmpty(t, changes)
	for i := 1; i < len(changes); i++ {
		assert.True(t, changes[i].Old.Equal(changes[i-1].New), "change %d does not follow change %d", i, i-1)
	}
	for i, c := range changes {
		assert.True(t, c.New.Equal(seen[i]), "observer %d read a value other than the one it was notified of", i)
	}
	assert.True(t, changes[len(changes)-1].New.Equal(store.GetSlot("2025-08-29", types.Morning)),
		"last notification matches the stored value")
}
