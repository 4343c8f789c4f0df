package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/schedule"
	"github.com/cuemby/slotsync/pkg/types"
	"github.com/rs/zerolog"
)

// Toucher records the time of the last successful reconciliation
type Toucher interface {
	Touch(at time.Time)
}

// Config wires a Reconciler
type Config struct {
	Store *schedule.Store

	// Gateway is only used by Resync. Without it the resync loop never starts.
	Gateway gateway.Gateway

	// Monitor, if set, is touched after every reconciled event
	Monitor Toucher

	// ResyncInterval enables a periodic full fetch when > 0
	ResyncInterval time.Duration

	// Now overrides the clock in tests
	Now func() time.Time
}

// Reconciler merges change feed events into the slot store. Remote events
// always win over local optimistic values (last write wins).
type Reconciler struct {
	store    *schedule.Store
	gateway  gateway.Gateway
	monitor  Toucher
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu               sync.RWMutex
	lastReconciledAt time.Time

	kick     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// requestedResyncTimeout bounds a resync triggered by RequestResync when no
// interval is configured.
const requestedResyncTimeout = 30 * time.Second

// NewReconciler creates a new reconciler
func NewReconciler(cfg Config) *Reconciler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		store:    cfg.Store,
		gateway:  cfg.Gateway,
		monitor:  cfg.Monitor,
		interval: cfg.ResyncInterval,
		now:      now,
		logger:   log.WithComponent("reconciler"),
		kick:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Handle merges one change event. It reports whether the event was applied;
// malformed and out-of-range events are dropped silently.
func (r *Reconciler) Handle(ev types.ChangeEvent) bool {
	if !ev.Kind.Valid() {
		r.drop(ev, "unknown_kind")
		return false
	}

	value := ev.Record.Slot()
	if ev.Kind == types.ChangeRemoved {
		value = types.EmptySlot()
	} else if value.Completed && !value.Claimed() {
		r.drop(ev, "malformed")
		return false
	}

	_, _, changed, err := r.store.Update(ev.Record.Date, ev.Record.TimeSlot, func(types.Slot) (types.Slot, error) {
		return value, nil
	}, schedule.SourceReconcile)
	switch {
	case errors.Is(err, schedule.ErrOutOfRange):
		r.drop(ev, "out_of_range")
		return false
	case err != nil:
		r.drop(ev, "malformed")
		return false
	}

	r.touch()
	metrics.EventsReconciledTotal.WithLabelValues(string(ev.Kind)).Inc()
	r.logger.Debug().
		Str("event_id", ev.ID).
		Str("kind", string(ev.Kind)).
		Str("date", string(ev.Record.Date)).
		Str("time_slot", string(ev.Record.TimeSlot)).
		Bool("changed", changed).
		Msg("Reconciled change event")
	return true
}

func (r *Reconciler) drop(ev types.ChangeEvent, reason string) {
	metrics.EventsDroppedTotal.WithLabelValues(reason).Inc()
	r.logger.Debug().
		Str("event_id", ev.ID).
		Str("kind", string(ev.Kind)).
		Str("date", string(ev.Record.Date)).
		Str("reason", reason).
		Msg("Dropped change event")
}

func (r *Reconciler) touch() {
	at := r.now()
	r.mu.Lock()
	r.lastReconciledAt = at
	r.mu.Unlock()
	if r.monitor != nil {
		r.monitor.Touch(at)
	}
}

// LastReconciledAt returns when the last event or resync was applied
func (r *Reconciler) LastReconciledAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReconciledAt
}

// Resync replaces the store content with a full fetch. On failure the store
// is left untouched.
func (r *Reconciler) Resync(ctx context.Context) error {
	if r.gateway == nil {
		return fmt.Errorf("resync requires a gateway")
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResyncDuration)

	records, err := r.gateway.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch schedule: %w", err)
	}

	skipped := r.store.Replace(records, schedule.SourceResync)
	if skipped > 0 {
		metrics.EventsDroppedTotal.WithLabelValues("out_of_range").Add(float64(skipped))
	}
	r.touch()
	r.logger.Debug().Int("records", len(records)).Int("skipped", skipped).Msg("Resynced schedule")
	return nil
}

// Start begins the resync loop. The loop runs a full fetch every
// ResyncInterval and whenever RequestResync is called. Without a gateway
// Start is a no-op.
func (r *Reconciler) Start() {
	if r.gateway == nil {
		return
	}
	r.wg.Add(1)
	go r.run()
}

// RequestResync asks the loop for one full fetch as soon as possible.
// Requests made while one is already pending collapse into it. It never
// blocks; a request made before Start runs once the loop starts.
func (r *Reconciler) RequestResync() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Stop stops the resync loop and waits for it to exit
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	var tick <-chan time.Time
	timeout := requestedResyncTimeout
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
		timeout = r.interval
	}

	for {
		select {
		case <-tick:
			r.resyncWithTimeout(timeout, "interval")
		case <-r.kick:
			r.resyncWithTimeout(timeout, "requested")
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reconciler) resyncWithTimeout(timeout time.Duration, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.Resync(ctx); err != nil {
		r.logger.Warn().Err(err).Str("trigger", trigger).Msg("Resync failed")
	}
}
