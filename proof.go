// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

import (
	"bytes"
	"encoding"

	"github.com/pkg/errors"

	"github.com/bnb-chain/cbor-smt/utils"
)

type ProofType byte

const (
	ProofInclusion         ProofType = 0x00
	ProofNonInclusionEmpty ProofType = 0x01
)

func (t ProofType) String() string {
	switch t {
	case ProofInclusion:
		return "INCLUSION"
	case ProofNonInclusionEmpty:
		return "NON_INCLUSION_EMPTY"
	default:
		return "UNKNOWN"
	}
}

// proofHeaderSize is the encoded size of a proof without its value.
const proofHeaderSize = 1 + Depth*HashSize

var (
	_ encoding.BinaryMarshaler   = (*Proof)(nil)
	_ encoding.BinaryUnmarshaler = (*Proof)(nil)
)

// Proof proves that a key holds a value, or that its leaf position is empty,
// relative to a root. Siblings[d] is the digest of the subtree beside the
// key's path below the node at depth d.
type Proof struct {
	Type     ProofType
	Siblings [Depth]Hash
	Value    []byte // only set for inclusion proofs
}

// MarshalBinary encodes the proof as the type byte, the 256 siblings and,
// for inclusion proofs, the raw value.
func (p *Proof) MarshalBinary() ([]byte, error) {
	buf := make([]byte, proofHeaderSize, proofHeaderSize+len(p.Value))
	buf[0] = byte(p.Type)
	for d := range p.Siblings {
		copy(buf[1+d*HashSize:], p.Siblings[d][:])
	}
	if p.Type == ProofInclusion {
		buf = append(buf, p.Value...)
	}
	return buf, nil
}

func (p *Proof) UnmarshalBinary(data []byte) error {
	if len(data) < proofHeaderSize {
		return errors.Wrapf(ErrInvalidProof, "need at least %d bytes, got %d", proofHeaderSize, len(data))
	}
	proofType := ProofType(data[0])
	switch proofType {
	case ProofInclusion:
	case ProofNonInclusionEmpty:
		if len(data) != proofHeaderSize {
			return errors.Wrap(ErrInvalidProof, "non-inclusion proof carries a value")
		}
	default:
		return errors.Wrapf(ErrInvalidProof, "unknown proof type 0x%02x", data[0])
	}
	p.Type = proofType
	for d := range p.Siblings {
		copy(p.Siblings[d][:], data[1+d*HashSize:])
	}
	p.Value = nil
	if proofType == ProofInclusion {
		p.Value = utils.CopyBytes(data[proofHeaderSize:])
	}
	return nil
}

// VerifyProof folds the proof siblings from the leaf position of key up to the
// root and compares the result with root. With inclusion set the proof must
// show key holding val; otherwise it must show the leaf position empty.
func VerifyProof(empties *EmptyCommitments, root Hash, key, val []byte, inclusion bool, proof *Proof) bool {
	if empties == nil || proof == nil || key == nil {
		return false
	}
	hasher := empties.Hasher()
	path := hasher.Digest(key)

	var acc Hash
	switch {
	case inclusion && proof.Type == ProofInclusion:
		if !bytes.Equal(proof.Value, val) {
			return false
		}
		acc = (&LeafNode{KeyHash: path, Value: val}).Hash(hasher)
	case !inclusion && proof.Type == ProofNonInclusionEmpty:
		acc = empties.At(Depth)
	default:
		return false
	}
	for d := Depth - 1; d >= 0; d-- {
		sibling := proof.Siblings[d]
		if bitAt(path, d) == 0 {
			acc = hasher.Digest(encodeInternal(acc[:], sibling[:]))
		} else {
			acc = hasher.Digest(encodeInternal(sibling[:], acc[:]))
		}
	}
	return acc == root
}
