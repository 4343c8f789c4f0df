// Package testutil provides controllable gateway and feed doubles.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/types"
)

// ErrInjected is the cause attached to injected failures
var ErrInjected = errors.New("injected failure")

// Call records one gateway invocation
type Call struct {
	Op        gateway.Op
	Key       types.SlotKey
	Record    types.Record
	Completed bool
}

// Gateway is an in-memory gateway.Gateway with failure injection and
// per-call gating.
type Gateway struct {
	mu      sync.Mutex
	rows    map[types.SlotKey]types.Record
	calls   []Call
	failing map[gateway.Op]int
	gate    chan struct{}
	entered chan Call
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway seeded with rows
func NewGateway(rows ...types.Record) *Gateway {
	g := &Gateway{
		rows:    make(map[types.SlotKey]types.Record),
		failing: make(map[gateway.Op]int),
	}
	for _, r := range rows {
		g.rows[r.Key()] = r
	}
	return g
}

// FailNext makes the next n calls of op fail with ErrInjected
func (g *Gateway) FailNext(op gateway.Op, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing[op] += n
}

// Hold makes every subsequent call block until Release. Entered calls are
// announced on the returned channel before blocking.
func (g *Gateway) Hold() <-chan Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	g.entered = make(chan Call, 16)
	return g.entered
}

// Release unblocks held calls and stops holding new ones
func (g *Gateway) Release() {
	g.mu.Lock()
	gate := g.gate
	g.gate = nil
	g.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// Calls returns the recorded invocations
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// Rows returns a copy of the persisted rows
func (g *Gateway) Rows() map[types.SlotKey]types.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := make(map[types.SlotKey]types.Record, len(g.rows))
	for k, v := range g.rows {
		rows[k] = v
	}
	return rows
}

func (g *Gateway) enter(ctx context.Context, c Call) error {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	gate, entered := g.gate, g.entered
	g.mu.Unlock()

	if gate != nil {
		entered <- c
		select {
		case <-gate:
		case <-ctx.Done():
			return gateway.Fail(c.Op, c.Key, ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing[c.Op] > 0 {
		g.failing[c.Op]--
		return gateway.Fail(c.Op, c.Key, ErrInjected)
	}
	return nil
}

func (g *Gateway) FetchAll(ctx context.Context) ([]types.Record, error) {
	if err := g.enter(ctx, Call{Op: gateway.OpFetchAll}); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	records := make([]types.Record, 0, len(g.rows))
	for _, r := range g.rows {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key().String() < records[j].Key().String()
	})
	return records, nil
}

func (g *Gateway) Upsert(ctx context.Context, rec types.Record) error {
	if err := g.enter(ctx, Call{Op: gateway.OpUpsert, Key: rec.Key(), Record: rec}); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows[rec.Key()] = rec
	return nil
}

func (g *Gateway) Update(ctx context.Context, key types.SlotKey, completed bool) error {
	if err := g.enter(ctx, Call{Op: gateway.OpUpdate, Key: key, Completed: completed}); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.rows[key]
	if !ok {
		return gateway.Fail(gateway.OpUpdate, key, errors.New("record not found"))
	}
	rec.Completed = completed
	g.rows[key] = rec
	return nil
}

func (g *Gateway) Remove(ctx context.Context, key types.SlotKey) error {
	if err := g.enter(ctx, Call{Op: gateway.OpRemove, Key: key}); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rows, key)
	return nil
}
