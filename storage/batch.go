package storage

import (
	"github.com/pkg/errors"

	"github.com/bnb-chain/cbor-smt/database"
	"github.com/bnb-chain/cbor-smt/utils"
)

// BatchContext queues writes to the node namespace and applies them in one
// engine batch on Commit. Reads see the queued writes first. A BatchContext
// is not safe for concurrent use.
type BatchContext struct {
	db      database.TreeDB
	batch   database.Batcher
	parser  ReferenceParser
	pending map[string][]byte // nil value marks a queued delete

	released bool
}

// CreateBatchContext starts a batch against the node namespace. The caller
// must Commit or Release it; deferring Release after creation is always safe.
func (r *Repository) CreateBatchContext() *BatchContext {
	return &BatchContext{
		db:      r.nodes,
		batch:   r.nodes.NewBatch(),
		parser:  r.parser,
		pending: make(map[string][]byte),
	}
}

// WithBatch runs fn in a fresh batch context and commits it if fn succeeds.
// The batch is released on every path.
func (r *Repository) WithBatch(fn func(ctx *BatchContext) error) error {
	ctx := r.CreateBatchContext()
	defer ctx.Release()
	if err := fn(ctx); err != nil {
		return err
	}
	return ctx.Commit()
}

func (b *BatchContext) Get(key []byte) ([]byte, error) {
	if b.released {
		return nil, ErrBatchReleased
	}
	if value, ok := b.pending[utils.BytesToString(key)]; ok {
		if value == nil {
			return nil, database.ErrDatabaseNotFound
		}
		return utils.CopyBytes(value), nil
	}
	return b.db.Get(key)
}

func (b *BatchContext) Has(key []byte) (bool, error) {
	if b.released {
		return false, ErrBatchReleased
	}
	if value, ok := b.pending[utils.BytesToString(key)]; ok {
		return value != nil, nil
	}
	return b.db.Has(key)
}

func (b *BatchContext) Set(key []byte, value []byte) error {
	if b.released {
		return ErrBatchReleased
	}
	if value == nil {
		value = []byte{}
	}
	value = utils.CopyBytes(value)
	if err := b.batch.Set(key, value); err != nil {
		return errors.Wrapf(err, "batch set %x", key)
	}
	b.pending[string(key)] = value
	return nil
}

func (b *BatchContext) Delete(key []byte) error {
	if b.released {
		return ErrBatchReleased
	}
	if err := b.batch.Delete(key); err != nil {
		return errors.Wrapf(err, "batch delete %x", key)
	}
	b.pending[string(key)] = nil
	return nil
}

// Len returns the number of distinct keys queued.
func (b *BatchContext) Len() int {
	return len(b.pending)
}

// Commit applies every queued write atomically and releases the context.
func (b *BatchContext) Commit() error {
	if b.released {
		return ErrBatchReleased
	}
	b.released = true
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.batch.Write(); err != nil {
		b.batch.Reset()
		n := len(b.pending)
		b.pending = nil
		return errors.Wrapf(err, "commit batch of %d keys", n)
	}
	b.pending = nil
	return nil
}

// Release discards queued writes unless the context was committed. Calling it
// more than once is harmless.
func (b *BatchContext) Release() {
	if b.released {
		return
	}
	b.released = true
	b.batch.Reset()
	b.pending = nil
}
