package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSchedule = []byte("feeding_schedule")
)

// BoltTable implements Table using BoltDB
type BoltTable struct {
	db        *bolt.DB
	publisher Publisher

	// writeMu spans a write transaction and its publish, so events leave in
	// commit order.
	writeMu sync.Mutex
}

var _ Table = (*BoltTable)(nil)

// NewBoltTable opens (or creates) the table under dataDir. Successful
// writes are announced on publisher, which may be nil.
func NewBoltTable(dataDir string, publisher Publisher) (*BoltTable, error) {
	dbPath := filepath.Join(dataDir, "slotsync.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSchedule); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketSchedule, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltTable{db: db, publisher: publisher}, nil
}

// Close closes the database
func (t *BoltTable) Close() error {
	return t.db.Close()
}

func rowKey(key types.SlotKey) []byte {
	return []byte(key.String())
}

// FetchAll lists every row in key order
func (t *BoltTable) FetchAll(ctx context.Context) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.Fail(gateway.OpFetchAll, types.SlotKey{}, err)
	}

	var records []types.Record
	err := t.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchedule)
		return b.ForEach(func(k, v []byte) error {
			var rec types.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode row %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, gateway.Fail(gateway.OpFetchAll, types.SlotKey{}, err)
	}
	return records, nil
}

// Get returns a single row
func (t *BoltTable) Get(ctx context.Context, key types.SlotKey) (types.Record, error) {
	var rec types.Record
	err := t.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSchedule).Get(rowKey(key))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// Upsert creates or replaces a row
func (t *BoltTable) Upsert(ctx context.Context, rec types.Record) error {
	key := rec.Key()
	if err := validateRecord(rec); err != nil {
		return gateway.Fail(gateway.OpUpsert, key, err)
	}
	if err := ctx.Err(); err != nil {
		return gateway.Fail(gateway.OpUpsert, key, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	kind := types.ChangeUpdated
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchedule)
		if b.Get(rowKey(key)) == nil {
			kind = types.ChangeCreated
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(rowKey(key), data)
	})
	if err != nil {
		return gateway.Fail(gateway.OpUpsert, key, err)
	}

	metrics.TableWritesTotal.WithLabelValues(string(gateway.OpUpsert)).Inc()
	t.publish(kind, rec)
	return nil
}

// Update sets the completed flag of an existing row
func (t *BoltTable) Update(ctx context.Context, key types.SlotKey, completed bool) error {
	if err := ctx.Err(); err != nil {
		return gateway.Fail(gateway.OpUpdate, key, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var rec types.Record
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchedule)
		data := b.Get(rowKey(key))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Completed = completed
		if err := validateRecord(rec); err != nil {
			return err
		}
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(rowKey(key), updated)
	})
	if err != nil {
		return gateway.Fail(gateway.OpUpdate, key, err)
	}

	metrics.TableWritesTotal.WithLabelValues(string(gateway.OpUpdate)).Inc()
	t.publish(types.ChangeUpdated, rec)
	return nil
}

// Remove deletes a row. Removing a missing row succeeds without an event.
func (t *BoltTable) Remove(ctx context.Context, key types.SlotKey) error {
	if err := ctx.Err(); err != nil {
		return gateway.Fail(gateway.OpRemove, key, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var (
		old     types.Record
		existed bool
	)
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchedule)
		data := b.Get(rowKey(key))
		if data == nil {
			return nil
		}
		existed = true
		if err := json.Unmarshal(data, &old); err != nil {
			return err
		}
		return b.Delete(rowKey(key))
	})
	if err != nil {
		return gateway.Fail(gateway.OpRemove, key, err)
	}

	if existed {
		metrics.TableWritesTotal.WithLabelValues(string(gateway.OpRemove)).Inc()
		t.publish(types.ChangeRemoved, old)
	}
	return nil
}

func (t *BoltTable) publish(kind types.ChangeKind, rec types.Record) {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(types.ChangeEvent{Kind: kind, Record: rec})
}

func validateRecord(rec types.Record) error {
	if _, err := types.ParseDate(string(rec.Date)); err != nil {
		return err
	}
	if !rec.TimeSlot.Valid() {
		return fmt.Errorf("invalid time slot %q", rec.TimeSlot)
	}
	if rec.Completed && rec.Person == nil {
		return fmt.Errorf("slot %s cannot be completed without a person", rec.Key())
	}
	return nil
}
