package storage

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/database"
	"github.com/bnb-chain/cbor-smt/utils"
)

// Reference counts live in the node namespace under "ref:" + node hash with
// an 8-byte big-endian counter as value. They are advisory: garbage
// collection decides by reachability alone and the consistency check reports
// where the two disagree.
//
// Increments read, modify and write the counter. The repository does not
// lock across those steps, so callers must serialize updates of one key.

var refCountPrefix = []byte("ref:")

const refCountKeyLength = 4 + bsmt.HashSize

func refCountKey(key NodeHashKey) []byte {
	return append(utils.CopyBytes(refCountPrefix), key.Bytes()...)
}

func isRefCountKey(raw []byte) bool {
	return len(raw) == refCountKeyLength && bytes.HasPrefix(raw, refCountPrefix)
}

type kvReader interface {
	Get(key []byte) ([]byte, error)
}

type kvWriter interface {
	Set(key []byte, value []byte) error
}

// readRefCount returns the counter of key; ok is false without an entry.
func readRefCount(kv kvReader, key NodeHashKey) (count uint64, ok bool, err error) {
	value, err := kv.Get(refCountKey(key))
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(err, "get refcount %s", key)
	}
	count, ok = utils.BytesToUint64(value)
	if !ok {
		return 0, false, errors.Wrapf(ErrMalformedEntry, "refcount %s has %d bytes", key, len(value))
	}
	return count, true, nil
}

func writeRefCount(kv kvWriter, key NodeHashKey, count uint64) error {
	if err := kv.Set(refCountKey(key), utils.Uint64ToBytes(count)); err != nil {
		return errors.Wrapf(err, "set refcount %s", key)
	}
	return nil
}

func applyDelta(key NodeHashKey, count uint64, delta int64) (uint64, error) {
	if delta < 0 && uint64(-delta) > count {
		return 0, errors.Wrapf(ErrRefCountUnderflow, "refcount %s is %d, delta %d", key, count, delta)
	}
	if delta < 0 {
		return count - uint64(-delta), nil
	}
	return count + uint64(delta), nil
}

// GetNodeRefCount returns the counter of key, zero when there is no entry.
func (r *Repository) GetNodeRefCount(key NodeHashKey) (uint64, error) {
	count, _, err := readRefCount(r.nodes, key)
	return count, err
}

func (r *Repository) SetNodeRefCount(key NodeHashKey, count uint64) error {
	return writeRefCount(r.nodes, key, count)
}

// IncrementNodeRefCount adds delta to the counter of key and returns the new
// value. A result below zero fails with ErrRefCountUnderflow and leaves the
// counter unchanged.
func (r *Repository) IncrementNodeRefCount(key NodeHashKey, delta int64) (uint64, error) {
	count, _, err := readRefCount(r.nodes, key)
	if err != nil {
		return 0, err
	}
	next, err := applyDelta(key, count, delta)
	if err != nil {
		return 0, err
	}
	if err := writeRefCount(r.nodes, key, next); err != nil {
		return 0, err
	}
	return next, nil
}

// SetNodeRefCounts writes all counters in one engine batch.
func (r *Repository) SetNodeRefCounts(counts map[NodeHashKey]uint64) error {
	return r.WithBatch(func(ctx *BatchContext) error {
		for key, count := range counts {
			if err := writeRefCount(ctx, key, count); err != nil {
				return err
			}
		}
		return nil
	})
}

// IncrementNodeRefCounts applies every delta and writes the results in one
// engine batch. If any counter would underflow nothing is written.
func (r *Repository) IncrementNodeRefCounts(deltas map[NodeHashKey]int64) error {
	keys := make([]NodeHashKey, 0, len(deltas))
	for key := range deltas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Bytes(), keys[j].Bytes()) < 0
	})

	return r.WithBatch(func(ctx *BatchContext) error {
		for _, key := range keys {
			count, _, err := readRefCount(ctx, key)
			if err != nil {
				return err
			}
			next, err := applyDelta(key, count, deltas[key])
			if err != nil {
				return err
			}
			if err := writeRefCount(ctx, key, next); err != nil {
				return err
			}
		}
		return nil
	})
}
