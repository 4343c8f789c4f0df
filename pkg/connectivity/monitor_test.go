package connectivity

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/slotsync/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestInitialStateIsConnected(t *testing.T) {
	m := NewMonitor()
	snap := m.State()
	assert.Equal(t, Connected, snap.State)
	assert.True(t, snap.LastUpdate.IsZero())
	assert.NoError(t, snap.Cause)
}

func TestStatusTransitions(t *testing.T) {
	m := NewMonitor()
	var seen []State
	m.OnChange(func(s Snapshot) { seen = append(seen, s.State) })

	m.HandleStatus(events.StatusConnected)
	m.HandleStatus(events.StatusDisconnected)
	m.HandleStatus(events.StatusDisconnected)
	m.HandleStatus(events.StatusConnected)

	assert.True(t, m.Connected())
	assert.Equal(t, []State{Disconnected, Connected}, seen)
}

func TestForceDisconnectedLatches(t *testing.T) {
	m := NewMonitor()
	cause := errors.New("fetch failed")

	m.ForceDisconnected(cause)
	m.HandleStatus(events.StatusConnected)

	snap := m.State()
	assert.Equal(t, Disconnected, snap.State)
	assert.ErrorIs(t, snap.Cause, cause)
}

func TestTouchKeepsLatest(t *testing.T) {
	m := NewMonitor()
	later := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	m.Touch(later)
	m.Touch(later.Add(-time.Minute))

	assert.Equal(t, later, m.State().LastUpdate)
}
