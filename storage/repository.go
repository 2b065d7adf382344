// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package storage

import (
	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/database"
	"github.com/bnb-chain/cbor-smt/metrics"
)

// Repository binds tree nodes, reference counts and the versioned root index
// to storage engines.
//
// Nodes and their reference counts share the nodes database, told apart by
// the reserved reference-count prefix. The root index lives in its own
// database, which may be a namespace of the same engine but must not share
// keys with the node namespace.
type Repository struct {
	nodes database.TreeDB
	roots database.TreeDB

	empties  *bsmt.EmptyCommitments
	parser   ReferenceParser
	reporter ProgressReporter
	metrics  metrics.Metrics
}

func NewRepository(nodes, roots database.TreeDB, opts ...Option) (*Repository, error) {
	if nodes == nil || roots == nil {
		return nil, ErrNilDatabase
	}
	r := &Repository{
		nodes:    nodes,
		roots:    roots,
		reporter: NoopReporter,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.empties == nil {
		r.empties = bsmt.NewEmptyCommitments(bsmt.NewBlake2bHasher())
	}
	if r.parser == nil {
		r.parser = NewNodeReferenceParser(r.empties)
	}
	if r.reporter == nil {
		r.reporter = NoopReporter
	}
	return r, nil
}

// EmptyCommitments returns the table the repository recognises empty
// subtrees with.
func (r *Repository) EmptyCommitments() *bsmt.EmptyCommitments {
	return r.empties
}

// GetNode returns the encoded node stored under key, or ErrNodeNotFound.
func (r *Repository) GetNode(key NodeHashKey) ([]byte, error) {
	data, err := r.nodes.Get(key.Bytes())
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, errors.Wrapf(ErrNodeNotFound, "get node %s", key)
		}
		return nil, errors.Wrapf(err, "get node %s", key)
	}
	return data, nil
}

func (r *Repository) HasNode(key NodeHashKey) (bool, error) {
	ok, err := r.nodes.Has(key.Bytes())
	if err != nil {
		return false, errors.Wrapf(err, "has node %s", key)
	}
	return ok, nil
}

func (r *Repository) PutNode(key NodeHashKey, data []byte) error {
	if err := r.nodes.Set(key.Bytes(), data); err != nil {
		return errors.Wrapf(err, "put node %s", key)
	}
	return nil
}

// DeleteNode removes the node stored under key. Its reference-count entry,
// if any, is left untouched.
func (r *Repository) DeleteNode(key NodeHashKey) error {
	if err := r.nodes.Delete(key.Bytes()); err != nil {
		return errors.Wrapf(err, "delete node %s", key)
	}
	return nil
}

// GetNodes returns the stored nodes among keys. Absent keys are left out of
// the result.
func (r *Repository) GetNodes(keys []NodeHashKey) (map[NodeHashKey][]byte, error) {
	ret := make(map[NodeHashKey][]byte, len(keys))
	for _, key := range keys {
		data, err := r.nodes.Get(key.Bytes())
		if err != nil {
			if errors.Is(err, database.ErrDatabaseNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "get nodes %s", key)
		}
		ret[key] = data
	}
	return ret, nil
}

// PutNodes writes all nodes in one engine batch.
func (r *Repository) PutNodes(nodes map[NodeHashKey][]byte) error {
	batch := r.nodes.NewBatch()
	for key, data := range nodes {
		if err := batch.Set(key.Bytes(), data); err != nil {
			return errors.Wrapf(err, "put nodes %s", key)
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrapf(err, "put nodes: write %d", len(nodes))
	}
	return nil
}

// DeleteNodes removes all keys in one engine batch.
func (r *Repository) DeleteNodes(keys []NodeHashKey) error {
	batch := r.nodes.NewBatch()
	for _, key := range keys {
		if err := batch.Delete(key.Bytes()); err != nil {
			return errors.Wrapf(err, "delete nodes %s", key)
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrapf(err, "delete nodes: write %d", len(keys))
	}
	return nil
}

// scanNodes calls fn for every node in the node namespace, skipping
// reference-count entries.
func (r *Repository) scanNodes(fn func(key NodeHashKey, data []byte) error) error {
	it := r.nodes.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		raw := it.Key()
		if isRefCountKey(raw) {
			continue
		}
		key, err := NewNodeHashKey(raw)
		if err != nil {
			return errors.Wrapf(ErrMalformedEntry, "node namespace holds key %x", raw)
		}
		if err := fn(key, it.Value()); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return errors.Wrap(err, "scan nodes")
	}
	return nil
}
