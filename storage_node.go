// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bnb-chain/cbor-smt/database"
)

// NodeStore is the append-only byte store nodes are persisted into, keyed by
// node digest. Get returns database.ErrDatabaseNotFound for absent keys.
// Every database.TreeDB satisfies it.
type NodeStore interface {
	Get(key []byte) ([]byte, error)
	Set(key []byte, value []byte) error
}

// nodeStorage bridges the node model and a NodeStore: nodes are encoded,
// hashed and stored under their digest, and decoded again on load.
type nodeStorage struct {
	store  NodeStore
	hasher HashFunction
	cache  *lru.Cache // Hash -> Node, nil when disabled
}

func newNodeStorage(store NodeStore, hasher HashFunction, cacheSize int) (*nodeStorage, error) {
	s := &nodeStorage{
		store:  store,
		hasher: hasher,
	}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// persist writes node under its digest. Writing identical content again
// stores the same bytes under the same key.
func (s *nodeStorage) persist(node Node) (Hash, error) {
	data := node.Encode()
	hash := s.hasher.Digest(data)
	if err := s.store.Set(hash[:], data); err != nil {
		return Hash{}, errors.Wrapf(err, "persist node %s", hash)
	}
	if s.cache != nil {
		s.cache.Add(hash, node)
	}
	return hash, nil
}

// load reads and decodes the node stored under hash. A missing node is
// reported through found, not as an error; undecodable bytes are an error.
func (s *nodeStorage) load(hash Hash) (node Node, found bool, err error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(hash); ok {
			return cached.(Node), true, nil
		}
	}
	data, err := s.store.Get(hash[:])
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "load node %s", hash)
	}
	node, err = DecodeNode(data)
	if err != nil {
		return nil, false, errors.Wrapf(err, "decode node %s", hash)
	}
	if s.cache != nil {
		s.cache.Add(hash, node)
	}
	return node, true, nil
}

// mustLoad is load for callers that followed a reference and require the
// node to exist.
func (s *nodeStorage) mustLoad(hash Hash) (Node, error) {
	node, found, err := s.load(hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNodeNotFound, "node %s", hash)
	}
	return node, nil
}
