// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

type (
	// Version numbers tree roots in a root index. Versions are assigned by
	// the caller and increase monotonically by convention.
	Version uint64

	Item struct {
		Key []byte
		Val []byte
	}
	SparseMerkleTree interface {
		Get(key []byte) ([]byte, bool, error)
		Put(key, val []byte) error
		MultiPut(items []Item) error
		Delete(key []byte) error
		GetProof(key []byte) (*Proof, error)
		VerifyProof(key, val []byte, inclusion bool, proof *Proof) bool
		Root() (Hash, bool)
		Commitment() Hash
		IsEmpty() bool
	}
)
