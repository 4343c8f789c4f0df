package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/slotsync/pkg/types"
)

// Op names a gateway operation
type Op string

const (
	OpFetchAll Op = "fetch_all"
	OpUpsert   Op = "upsert"
	OpUpdate   Op = "update"
	OpRemove   Op = "remove"
)

// Gateway is the only way the core touches durable state. Every method may
// fail with a *RemoteFailure.
type Gateway interface {
	// FetchAll lists every persisted slot record
	FetchAll(ctx context.Context) ([]types.Record, error)

	// Upsert creates or replaces the record for (date, time slot)
	Upsert(ctx context.Context, rec types.Record) error

	// Update sets only the completed flag; the record must already exist
	Update(ctx context.Context, key types.SlotKey, completed bool) error

	// Remove deletes the record for (date, time slot)
	Remove(ctx context.Context, key types.SlotKey) error
}

// RemoteFailure reports a rejected or timed-out gateway call
type RemoteFailure struct {
	Op    Op
	Key   types.SlotKey
	Cause error
}

func (e *RemoteFailure) Error() string {
	if e.Key.Date == "" {
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("remote %s %s failed: %v", e.Op, e.Key, e.Cause)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Cause
}

// Fail wraps err as a *RemoteFailure unless it already is one
func Fail(op Op, key types.SlotKey, err error) error {
	if err == nil {
		return nil
	}
	var rf *RemoteFailure
	if errors.As(err, &rf) {
		return err
	}
	return &RemoteFailure{Op: op, Key: key, Cause: err}
}
