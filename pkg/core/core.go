package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/slotsync/pkg/connectivity"
	"github.com/cuemby/slotsync/pkg/controller"
	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/reconciler"
	"github.com/cuemby/slotsync/pkg/schedule"
	"github.com/cuemby/slotsync/pkg/types"
	"github.com/rs/zerolog"
)

// Config holds the schedule window and sync tuning
type Config struct {
	Range          types.DateRange
	Roster         []string
	RequestTimeout time.Duration
	ResyncInterval time.Duration
}

// InitializationFailure reports a failed startup fetch or subscribe. The
// core stays usable: the schedule is all-empty (or whatever the feed
// delivers) and connectivity is latched disconnected.
type InitializationFailure struct {
	Stage string
	Cause error
}

func (e *InitializationFailure) Error() string {
	return fmt.Sprintf("initialization failed during %s: %v", e.Stage, e.Cause)
}

func (e *InitializationFailure) Unwrap() error {
	return e.Cause
}

// ErrAlreadyStarted is returned by a second Start
var ErrAlreadyStarted = errors.New("core already started")

// Core is the sync engine consumed by a presentation layer
type Core struct {
	cfg        Config
	store      *schedule.Store
	gateway    gateway.Gateway
	feed       events.Feed
	controller *controller.Controller
	reconciler *reconciler.Reconciler
	monitor    *connectivity.Monitor
	logger     zerolog.Logger

	mu      sync.Mutex
	sub     events.Subscription
	started bool
	closed  bool
	// feedLost is set by a disconnected status and cleared by the resync
	// requested on the next connected one.
	feedLost bool
}

// New wires a core around an explicitly provided gateway and feed
func New(cfg Config, gw gateway.Gateway, feed events.Feed) (*Core, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if feed == nil {
		return nil, fmt.Errorf("feed is required")
	}
	if _, err := types.NewDateRange(cfg.Range.Start, cfg.Range.End); err != nil {
		return nil, fmt.Errorf("invalid schedule range: %w", err)
	}

	store := schedule.NewStore(cfg.Range)
	monitor := connectivity.NewMonitor()

	return &Core{
		cfg:     cfg,
		store:   store,
		gateway: gw,
		feed:    feed,
		controller: controller.New(controller.Config{
			Store:          store,
			Gateway:        gw,
			Roster:         cfg.Roster,
			RequestTimeout: cfg.RequestTimeout,
		}),
		reconciler: reconciler.NewReconciler(reconciler.Config{
			Store:          store,
			Gateway:        gw,
			Monitor:        monitor,
			ResyncInterval: cfg.ResyncInterval,
		}),
		monitor: monitor,
		logger:  log.WithComponent("core"),
	}, nil
}

// Start seeds the store from a full fetch and then subscribes to the feed.
// A non-nil *InitializationFailure leaves the core running in degraded mode.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	var initErr error
	fail := func(stage string, err error) {
		c.monitor.ForceDisconnected(err)
		if initErr == nil {
			initErr = &InitializationFailure{Stage: stage, Cause: err}
		}
		c.logger.Error().Err(err).Str("stage", stage).Msg("Initialization failed")
	}

	records, err := c.fetch(ctx)
	if err != nil {
		fail("fetch", err)
		metrics.UpdateComponent("store", true, "empty: fetch failed")
	} else {
		skipped := c.store.Replace(records, schedule.SourceSeed)
		c.logger.Info().
			Int("records", len(records)).
			Int("skipped", skipped).
			Msg("Seeded schedule")
		metrics.UpdateComponent("store", true, "seeded")
	}

	sub, err := c.feed.Subscribe(
		func(ev types.ChangeEvent) { c.reconciler.Handle(ev) },
		c.handleStatus,
	)
	if err != nil {
		fail("subscribe", err)
	} else {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			sub.Unsubscribe()
			return initErr
		}
		c.sub = sub
		c.mu.Unlock()
	}

	c.reconciler.Start()
	return initErr
}

// handleStatus forwards feed transitions to the monitor. Events published
// while the feed was down are never replayed, so a reconnect triggers one
// full resync.
func (c *Core) handleStatus(status events.Status) {
	c.monitor.HandleStatus(status)

	c.mu.Lock()
	resync := false
	switch status {
	case events.StatusDisconnected:
		c.feedLost = true
	case events.StatusConnected:
		resync = c.feedLost && !c.closed
		c.feedLost = false
	}
	c.mu.Unlock()

	if resync {
		c.logger.Info().Msg("Change feed reconnected, resyncing schedule")
		c.reconciler.RequestResync()
	}
}

func (c *Core) fetch(ctx context.Context) ([]types.Record, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	return c.gateway.FetchAll(ctx)
}

// GetSchedule returns a read-only copy of the whole schedule
func (c *Core) GetSchedule() types.Schedule {
	return c.store.Snapshot()
}

// ClaimOrUnclaim claims an empty slot for actingPerson or unclaims an occupied one
func (c *Core) ClaimOrUnclaim(ctx context.Context, date types.Date, ts types.TimeSlot, actingPerson string) (controller.Result, error) {
	return c.controller.ClaimOrUnclaim(ctx, date, ts, actingPerson)
}

// ToggleCompletion flips the completed flag of a claimed slot
func (c *Core) ToggleCompletion(ctx context.Context, date types.Date, ts types.TimeSlot) (controller.Result, error) {
	return c.controller.ToggleCompletion(ctx, date, ts)
}

// GetConnectivity returns the feed state and the last reconciliation time
func (c *Core) GetConnectivity() connectivity.Snapshot {
	return c.monitor.State()
}

// Subscribe registers fn for every visible store change, local or reconciled
func (c *Core) Subscribe(fn schedule.Observer) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// OnConnectivityChange registers fn for connectivity transitions
func (c *Core) OnConnectivityChange(fn func(connectivity.Snapshot)) {
	c.monitor.OnChange(fn)
}

// Roster returns the configured identities in order
func (c *Core) Roster() []string {
	return append([]string(nil), c.cfg.Roster...)
}

// Store exposes the slot store for metrics collection
func (c *Core) Store() *schedule.Store {
	return c.store
}

// Close releases the feed subscription exactly once. It is safe to call
// before Start, after a failed Start, and more than once.
func (c *Core) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	c.reconciler.Stop()
	c.logger.Debug().Msg("Core closed")
}
