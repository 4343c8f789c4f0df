package connectivity

import (
	"sync"
	"time"

	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/rs/zerolog"
)

// State is the feed health as shown to users
type State string

const (
	Connected    State = "connected"
	Disconnected State = "disconnected"
)

// Snapshot is the observable monitor state
type Snapshot struct {
	State      State
	LastUpdate time.Time // zero until the first reconciled event
	Cause      error     // set when forced disconnected during initialization
}

// Monitor tracks change feed health. It starts out connected so no warning
// flashes at startup; ForceDisconnected latches it disconnected for the
// rest of the process lifetime.
type Monitor struct {
	mu         sync.RWMutex
	state      State
	lastUpdate time.Time
	latched    bool
	cause      error
	observers  []func(Snapshot)
	logger     zerolog.Logger
}

// NewMonitor creates a monitor in the connected state
func NewMonitor() *Monitor {
	metrics.FeedConnected.Set(1)
	return &Monitor{
		state:  Connected,
		logger: log.WithComponent("connectivity"),
	}
}

// HandleStatus applies a feed status transition
func (m *Monitor) HandleStatus(status events.Status) {
	next := Disconnected
	if status == events.StatusConnected {
		next = Connected
	}

	m.mu.Lock()
	if m.latched || m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	snap := m.snapshotLocked()
	observers := append([](func(Snapshot))(nil), m.observers...)
	m.mu.Unlock()

	m.logger.Info().Str("state", string(next)).Msg("Change feed status changed")
	m.publish(snap, observers)
}

// ForceDisconnected latches the monitor disconnected. Later status
// transitions are ignored.
func (m *Monitor) ForceDisconnected(cause error) {
	m.mu.Lock()
	m.latched = true
	if m.cause == nil {
		m.cause = cause
	}
	changed := m.state != Disconnected
	m.state = Disconnected
	snap := m.snapshotLocked()
	observers := append([](func(Snapshot))(nil), m.observers...)
	m.mu.Unlock()

	m.logger.Error().Err(cause).Msg("Connectivity forced to disconnected")
	if changed {
		m.publish(snap, observers)
	}
}

// Touch records a successful reconciliation time
func (m *Monitor) Touch(at time.Time) {
	m.mu.Lock()
	if at.After(m.lastUpdate) {
		m.lastUpdate = at
	}
	m.mu.Unlock()
}

// State returns the current snapshot
func (m *Monitor) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Connected reports whether the feed is currently considered healthy
func (m *Monitor) Connected() bool {
	return m.State().State == Connected
}

// OnChange registers fn for state transitions
func (m *Monitor) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, LastUpdate: m.lastUpdate, Cause: m.cause}
}

func (m *Monitor) publish(snap Snapshot, observers []func(Snapshot)) {
	if snap.State == Connected {
		metrics.FeedConnected.Set(1)
		metrics.UpdateComponent("feed", true, "subscribed")
	} else {
		metrics.FeedConnected.Set(0)
		msg := "not subscribed"
		if snap.Cause != nil {
			msg = snap.Cause.Error()
		}
		metrics.UpdateComponent("feed", false, msg)
	}
	for _, fn := range observers {
		fn(snap)
	}
}
