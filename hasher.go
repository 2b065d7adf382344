// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

import (
	"hash"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// HashSize is the length of every digest in the tree.
const HashSize = 32

// Hash is a 32-byte digest produced by a HashFunction.
type Hash [HashSize]byte

// BytesToHash converts b to a Hash, failing unless b is exactly HashSize long.
func BytesToHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errors.Wrapf(ErrInvalidHashSize, "got %d bytes", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Bytes returns a copy of the digest as a slice.
func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return hexutil.Encode(h[:]) }

// HashFunction maps arbitrary bytes to a 32-byte digest.
type HashFunction interface {
	Digest(data []byte) Hash
}

var _ HashFunction = (*Hasher)(nil)

// NewHasherPool returns a Hasher that draws hash states from a pool, so it can
// be shared by concurrent readers. newHash must produce 32-byte digests.
func NewHasherPool(newHash func() hash.Hash) (*Hasher, error) {
	if newHash == nil {
		return nil, ErrNilHashFunction
	}
	if size := newHash().Size(); size != HashSize {
		return nil, errors.Wrapf(ErrInvalidHashSize, "hash function produces %d bytes", size)
	}
	return &Hasher{
		pool: sync.Pool{
			New: func() interface{} { return newHash() },
		},
	}, nil
}

// NewBlake2bHasher returns the default Blake2b-256 hasher.
func NewBlake2bHasher() *Hasher {
	hasher, err := NewHasherPool(newBlake2b256)
	if err != nil {
		panic(err)
	}
	return hasher
}

func newBlake2b256() hash.Hash {
	// only fails for keys longer than 64 bytes
	h, _ := blake2b.New256(nil)
	return h
}

type Hasher struct {
	pool sync.Pool
}

// Hash returns the digest of the concatenated inputs.
func (h *Hasher) Hash(inputs ...[]byte) []byte {
	hasher := h.pool.Get().(hash.Hash)
	defer h.pool.Put(hasher)

	hasher.Reset()
	for i := range inputs {
		hasher.Write(inputs[i])
	}
	return hasher.Sum(nil)
}

func (h *Hasher) Digest(data []byte) Hash {
	var digest Hash
	copy(digest[:], h.Hash(data))
	return digest
}
