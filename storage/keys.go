// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package storage

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
)

// NodeHashKey addresses a stored node by its digest.
type NodeHashKey struct {
	hash bsmt.Hash
}

// RootHashKey addresses the node a tree version is rooted at. It is kept
// apart from NodeHashKey so a root can only be used as a node key through
// an explicit NodeKey conversion.
type RootHashKey struct {
	hash bsmt.Hash
}

func NewNodeHashKey(b []byte) (NodeHashKey, error) {
	if len(b) != bsmt.HashSize {
		return NodeHashKey{}, errors.Wrapf(ErrInvalidKeyLength, "node key has %d bytes", len(b))
	}
	var key NodeHashKey
	copy(key.hash[:], b)
	return key, nil
}

func NewRootHashKey(b []byte) (RootHashKey, error) {
	if len(b) != bsmt.HashSize {
		return RootHashKey{}, errors.Wrapf(ErrInvalidKeyLength, "root key has %d bytes", len(b))
	}
	var key RootHashKey
	copy(key.hash[:], b)
	return key, nil
}

func NodeHashKeyFromHash(h bsmt.Hash) NodeHashKey { return NodeHashKey{hash: h} }

func RootHashKeyFromHash(h bsmt.Hash) RootHashKey { return RootHashKey{hash: h} }

func (k NodeHashKey) Bytes() []byte        { return k.hash[:] }
func (k NodeHashKey) Hash() bsmt.Hash      { return k.hash }
func (k NodeHashKey) String() string       { return hexutil.Encode(k.hash[:]) }
func (k NodeHashKey) RootKey() RootHashKey { return RootHashKey{hash: k.hash} }

func (k RootHashKey) Bytes() []byte        { return k.hash[:] }
func (k RootHashKey) Hash() bsmt.Hash      { return k.hash }
func (k RootHashKey) String() string       { return hexutil.Encode(k.hash[:]) }
func (k RootHashKey) NodeKey() NodeHashKey { return NodeHashKey{hash: k.hash} }

// NodeSet is a set of node keys.
type NodeSet map[NodeHashKey]struct{}

func (s NodeSet) Add(key NodeHashKey) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

func (s NodeSet) Contains(key NodeHashKey) bool {
	_, ok := s[key]
	return ok
}
