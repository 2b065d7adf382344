package storage

import (
	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
)

type kvStore interface {
	kvReader
	kvWriter
	Has(key []byte) (bool, error)
}

var _ bsmt.NodeStore = (*nodeStore)(nil)

// nodeStore lets a tree persist its nodes into the repository's node
// namespace.
type nodeStore struct {
	kv     kvStore
	parser ReferenceParser
	track  bool
}

// NodeStore returns a bsmt.NodeStore writing straight into the node namespace.
// With trackRefCounts set, storing a node that was not yet present increments
// the reference count of each child it points to.
func (r *Repository) NodeStore(trackRefCounts bool) bsmt.NodeStore {
	return &nodeStore{kv: r.nodes, parser: r.parser, track: trackRefCounts}
}

// NodeStore returns a bsmt.NodeStore whose writes are queued in the batch,
// so the nodes of a mutation become visible together on Commit.
func (b *BatchContext) NodeStore(trackRefCounts bool) bsmt.NodeStore {
	return &nodeStore{kv: b, parser: b.parser, track: trackRefCounts}
}

func (s *nodeStore) Get(key []byte) ([]byte, error) {
	return s.kv.Get(key)
}

func (s *nodeStore) Set(key []byte, value []byte) error {
	if !s.track {
		return s.kv.Set(key, value)
	}
	exists, err := s.kv.Has(key)
	if err != nil {
		return errors.Wrapf(err, "has node %x", key)
	}
	if err := s.kv.Set(key, value); err != nil {
		return err
	}
	if exists {
		return nil
	}
	children, err := s.parser.References(value)
	if err != nil {
		return err
	}
	for _, child := range children {
		count, _, err := readRefCount(s.kv, child)
		if err != nil {
			return err
		}
		if err := writeRefCount(s.kv, child, count+1); err != nil {
			return err
		}
	}
	return nil
}
