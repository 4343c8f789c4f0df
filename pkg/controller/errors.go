package controller

import (
	"errors"
	"fmt"

	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/types"
)

var (
	// ErrMissingIdentity is returned when claiming an empty slot without an actor
	ErrMissingIdentity = errors.New("select your name before claiming a slot")

	// ErrUnknownPerson is returned when the actor is not on the roster
	ErrUnknownPerson = errors.New("person is not on the roster")

	// ErrDateOutOfRange is returned for dates outside the schedule window
	ErrDateOutOfRange = errors.New("date outside the schedule window")

	// ErrInvalidTimeSlot is returned for time slots other than morning/evening
	ErrInvalidTimeSlot = errors.New("invalid time slot")
)

// SyncFailure reports an optimistic mutation that the gateway rejected and
// that has been rolled back.
type SyncFailure struct {
	Action     Action
	Key        types.SlotKey
	RestoredTo types.Slot
	Cause      error
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("failed to sync %s of %s, rolled back: %v", e.Action, e.Key, e.Cause)
}

func (e *SyncFailure) Unwrap() error {
	return e.Cause
}

// RemoteFailure returns the underlying gateway failure, if any
func (e *SyncFailure) RemoteFailure() *gateway.RemoteFailure {
	var rf *gateway.RemoteFailure
	if errors.As(e.Cause, &rf) {
		return rf
	}
	return nil
}
