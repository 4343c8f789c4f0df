package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/slotsync/pkg/types"
)

// Payload is the untyped change notification carried on the wire
type Payload struct {
	ID        string        `json:"id,omitempty"`
	Kind      string        `json:"kind"`
	New       *RecordFields `json:"new,omitempty"`
	Old       *RecordFields `json:"old,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// RecordFields is a row snapshot as it appears on the wire
type RecordFields struct {
	Date      string  `json:"date"`
	TimeSlot  string  `json:"time_slot"`
	Person    *string `json:"person"`
	Completed bool    `json:"completed"`
}

var (
	ErrUnknownKind     = errors.New("unknown change kind")
	ErrMissingSnapshot = errors.New("missing record snapshot")
	ErrInvalidRecord   = errors.New("invalid record snapshot")
)

// Encode converts a validated event to its wire form
func Encode(ev types.ChangeEvent) Payload {
	fields := &RecordFields{
		Date:      string(ev.Record.Date),
		TimeSlot:  string(ev.Record.TimeSlot),
		Person:    ev.Record.Slot().Person,
		Completed: ev.Record.Completed,
	}
	p := Payload{ID: ev.ID, Kind: string(ev.Kind), Timestamp: ev.Timestamp}
	if ev.Kind == types.ChangeRemoved {
		p.Old = fields
	} else {
		p.New = fields
	}
	return p
}

// Decode narrows a wire payload into a ChangeEvent. created and updated
// events must carry a new snapshot, removed events an old one.
func Decode(p Payload) (types.ChangeEvent, error) {
	kind := types.ChangeKind(p.Kind)
	if !kind.Valid() {
		return types.ChangeEvent{}, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}

	fields := p.New
	if kind == types.ChangeRemoved {
		fields = p.Old
	}
	if fields == nil {
		return types.ChangeEvent{}, fmt.Errorf("%w for %s event", ErrMissingSnapshot, kind)
	}

	rec, err := fields.record()
	if err != nil {
		return types.ChangeEvent{}, err
	}
	if kind == types.ChangeRemoved {
		// only the key of a removed row matters
		rec.Person, rec.Completed = nil, false
	} else if rec.Completed && rec.Person == nil {
		return types.ChangeEvent{}, fmt.Errorf("%w: completed slot without person", ErrInvalidRecord)
	}

	return types.ChangeEvent{
		ID:        p.ID,
		Kind:      kind,
		Record:    rec,
		Timestamp: p.Timestamp,
	}, nil
}

func (f *RecordFields) record() (types.Record, error) {
	date, err := types.ParseDate(f.Date)
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	ts, err := types.ParseTimeSlot(f.TimeSlot)
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec := types.Record{Date: date, TimeSlot: ts, Completed: f.Completed}
	if f.Person != nil {
		p := *f.Person
		rec.Person = &p
	}
	return rec, nil
}
