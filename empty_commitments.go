// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

// EmptyCommitments holds the digest of an empty subtree rooted at every depth
// of the tree. Depth 0 is the root of an empty tree and depth 256 is an empty
// leaf position. The table is a pure function of the hash function and is
// never modified after construction, so one instance can be shared by every
// tree and repository using that hash function.
type EmptyCommitments struct {
	hasher HashFunction
	hashes [Depth + 1]Hash
	depths map[Hash]int
}

// NewEmptyCommitments computes the table for hasher.
//
//	EMPTY[256] = H(0x00)
//	EMPTY[d]   = H(encode(Internal{EMPTY[d+1], EMPTY[d+1]}))
func NewEmptyCommitments(hasher HashFunction) *EmptyCommitments {
	e := &EmptyCommitments{
		hasher: hasher,
		depths: make(map[Hash]int, Depth+1),
	}
	e.hashes[Depth] = hasher.Digest([]byte{0x00})
	for d := Depth - 1; d >= 0; d-- {
		child := e.hashes[d+1]
		e.hashes[d] = hasher.Digest(encodeInternal(child[:], child[:]))
	}
	for d := Depth; d >= 0; d-- {
		e.depths[e.hashes[d]] = d
	}
	return e
}

// At returns the empty commitment at depth, which must be in [0, 256].
func (e *EmptyCommitments) At(depth int) Hash {
	return e.hashes[depth]
}

// Root is the commitment of a tree holding no keys.
func (e *EmptyCommitments) Root() Hash {
	return e.hashes[0]
}

// IsEmpty reports whether h is the empty commitment at depth.
func (e *EmptyCommitments) IsEmpty(depth int, h Hash) bool {
	return e.hashes[depth] == h
}

// Contains reports whether h is the empty commitment of any depth.
func (e *EmptyCommitments) Contains(h Hash) bool {
	_, ok := e.depths[h]
	return ok
}

// Hasher returns the hash function the table was built with.
func (e *EmptyCommitments) Hasher() HashFunction {
	return e.hasher
}
