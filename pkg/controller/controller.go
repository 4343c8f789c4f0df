package controller

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/schedule"
	"github.com/cuemby/slotsync/pkg/types"
	"github.com/google/uuid"
)

// Action is what a mutation did to a slot
type Action string

const (
	ActionClaim    Action = "claim"
	ActionUnclaim  Action = "unclaim"
	ActionComplete Action = "complete"
	ActionReopen   Action = "reopen"
	ActionNone     Action = "none"
)

// Result describes an applied (and persisted) mutation
type Result struct {
	ID       string
	Action   Action
	Key      types.SlotKey
	Previous types.Slot
	Current  types.Slot
}

// Config wires a Controller
type Config struct {
	Store   *schedule.Store
	Gateway gateway.Gateway

	// Roster lists the identities allowed to claim. Empty allows anyone.
	Roster []string

	// RequestTimeout bounds each gateway call; 0 means no extra bound
	RequestTimeout time.Duration
}

// Controller applies mutations to the store before the gateway confirms
// them and rolls them back when the gateway fails. Each call carries its
// own rollback snapshot; concurrent mutations of the same slot are not
// serialized and the last store write wins.
type Controller struct {
	store   *schedule.Store
	gateway gateway.Gateway
	roster  map[string]bool
	timeout time.Duration
}

// New creates a controller
func New(cfg Config) *Controller {
	roster := make(map[string]bool, len(cfg.Roster))
	for _, name := range cfg.Roster {
		roster[name] = true
	}
	return &Controller{
		store:   cfg.Store,
		gateway: cfg.Gateway,
		roster:  roster,
		timeout: cfg.RequestTimeout,
	}
}

// errNoop aborts a store update without counting as a failure
var errNoop = errors.New("no-op")

// ClaimOrUnclaim claims an empty slot for actingPerson, or unclaims an
// occupied one regardless of who holds it. actingPerson may be empty when
// unclaiming. The new value is visible in the store before the gateway is
// called; the call blocks until the gateway answers.
func (c *Controller) ClaimOrUnclaim(ctx context.Context, date types.Date, ts types.TimeSlot, actingPerson string) (Result, error) {
	if err := c.validate(date, ts); err != nil {
		return Result{}, c.reject("claim", err)
	}

	action := ActionNone
	prev, next, _, err := c.store.Update(date, ts, func(cur types.Slot) (types.Slot, error) {
		if cur.Claimed() {
			action = ActionUnclaim
			return types.EmptySlot(), nil
		}
		if actingPerson == "" {
			return cur, ErrMissingIdentity
		}
		if len(c.roster) > 0 && !c.roster[actingPerson] {
			return cur, ErrUnknownPerson
		}
		action = ActionClaim
		return types.ClaimedBy(actingPerson), nil
	}, schedule.SourceOptimistic)
	if err != nil {
		return Result{}, c.reject("claim", translate(err))
	}

	key := types.SlotKey{Date: date, TimeSlot: ts}
	result := Result{ID: uuid.NewString(), Action: action, Key: key, Previous: prev, Current: next}

	var opErr error
	if action == ActionUnclaim {
		opErr = c.call(ctx, gateway.OpRemove, key, func(ctx context.Context) error {
			return c.gateway.Remove(ctx, key)
		})
	} else {
		opErr = c.call(ctx, gateway.OpUpsert, key, func(ctx context.Context) error {
			return c.gateway.Upsert(ctx, types.Record{
				Date:      date,
				TimeSlot:  ts,
				Person:    next.Clone().Person,
				Completed: false,
			})
		})
	}
	if opErr != nil {
		return Result{}, c.rollback(result, opErr)
	}

	c.succeed(result)
	return result, nil
}

// ToggleCompletion flips the completed flag of a claimed slot. Unclaimed
// slots are left alone: the result has ActionNone and no gateway call is
// made.
func (c *Controller) ToggleCompletion(ctx context.Context, date types.Date, ts types.TimeSlot) (Result, error) {
	if err := c.validate(date, ts); err != nil {
		return Result{}, c.reject("toggle", err)
	}

	key := types.SlotKey{Date: date, TimeSlot: ts}
	prev, next, _, err := c.store.Update(date, ts, func(cur types.Slot) (types.Slot, error) {
		if !cur.Claimed() {
			return cur, errNoop
		}
		return cur.WithCompleted(!cur.Completed), nil
	}, schedule.SourceOptimistic)
	if errors.Is(err, errNoop) {
		metrics.MutationsTotal.WithLabelValues("toggle", "noop").Inc()
		return Result{Action: ActionNone, Key: key, Previous: prev, Current: prev}, nil
	}
	if err != nil {
		return Result{}, c.reject("toggle", translate(err))
	}

	action := ActionReopen
	if next.Completed {
		action = ActionComplete
	}
	result := Result{ID: uuid.NewString(), Action: action, Key: key, Previous: prev, Current: next}

	if opErr := c.call(ctx, gateway.OpUpdate, key, func(ctx context.Context) error {
		return c.gateway.Update(ctx, key, next.Completed)
	}); opErr != nil {
		return Result{}, c.rollback(result, opErr)
	}

	c.succeed(result)
	return result, nil
}

func (c *Controller) validate(date types.Date, ts types.TimeSlot) error {
	if !ts.Valid() {
		return ErrInvalidTimeSlot
	}
	if !c.store.Range().Contains(date) {
		return ErrDateOutOfRange
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, schedule.ErrOutOfRange):
		return ErrDateOutOfRange
	case errors.Is(err, schedule.ErrInvalidTimeSlot):
		return ErrInvalidTimeSlot
	}
	return err
}

func (c *Controller) call(ctx context.Context, op gateway.Op, key types.SlotKey, fn func(context.Context) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.GatewayRequestDuration, string(op))

	return gateway.Fail(op, key, fn(ctx))
}

// rollback restores the pre-mutation snapshot. It writes whatever the
// snapshot was even if a newer value has since landed in the store.
func (c *Controller) rollback(result Result, cause error) error {
	c.store.Set(result.Key.Date, result.Key.TimeSlot, result.Previous, schedule.SourceRollback)

	metrics.MutationsTotal.WithLabelValues(string(result.Action), "rolled_back").Inc()
	metrics.RollbacksTotal.WithLabelValues(string(result.Action)).Inc()

	logger := log.WithSlot("controller", string(result.Key.Date), string(result.Key.TimeSlot))
	logger.Warn().
		Err(cause).
		Str("mutation_id", result.ID).
		Str("action", string(result.Action)).
		Str("restored", result.Previous.String()).
		Msg("Rolled back optimistic mutation")

	return &SyncFailure{
		Action:     result.Action,
		Key:        result.Key,
		RestoredTo: result.Previous,
		Cause:      cause,
	}
}

func (c *Controller) succeed(result Result) {
	metrics.MutationsTotal.WithLabelValues(string(result.Action), "ok").Inc()

	logger := log.WithSlot("controller", string(result.Key.Date), string(result.Key.TimeSlot))
	logger.Debug().
		Str("mutation_id", result.ID).
		Str("action", string(result.Action)).
		Str("slot", result.Current.String()).
		Msg("Mutation persisted")
}

func (c *Controller) reject(op string, err error) error {
	metrics.MutationsTotal.WithLabelValues(op, "rejected").Inc()
	return err
}
