// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

import (
	"github.com/pkg/errors"
)

var (
	ErrNilStore = errors.New("node store is nil")

	ErrNilHashFunction = errors.New("hash function is nil")

	ErrInvalidHashSize = errors.New("digest must be 32 bytes")

	ErrInvalidKey = errors.New("invalid key")

	ErrNodeNotFound = errors.New("tree node not found")

	ErrMalformedNode = errors.New("malformed tree node")

	// ErrKeyCollision is returned when two different key digests share every
	// path bit below the depth they meet at, which the tree cannot tell apart
	// from an update of the same key.
	ErrKeyCollision = errors.New("key digests do not diverge")

	ErrInvalidProof = errors.New("invalid proof encoding")
)
