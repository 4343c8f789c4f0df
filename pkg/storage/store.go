package storage

import (
	"context"
	"errors"

	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/types"
)

// ErrNotFound is returned when a partial update targets a missing row
var ErrNotFound = errors.New("record not found")

// Table is the authoritative feeding schedule table. Every implementation
// satisfies gateway.Gateway so the core can use it in-process.
type Table interface {
	gateway.Gateway

	// Get returns a single row
	Get(ctx context.Context, key types.SlotKey) (types.Record, error)

	// Close releases the underlying database
	Close() error
}

// Publisher receives one change event per successful write
type Publisher interface {
	Publish(event types.ChangeEvent)
}
