// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

var (
	_ Node = (*InternalNode)(nil)
	_ Node = (*LeafNode)(nil)
)

// Node is a persisted tree element, either *InternalNode or *LeafNode.
// Nodes are immutable once built; their identity is the digest of their
// canonical encoding.
type Node interface {
	// Encode returns the canonical CBOR encoding of the node.
	Encode() []byte
	// Hash returns the digest of Encode under hasher.
	Hash(hasher HashFunction) Hash

	node()
}

// InternalNode references its two subtrees by digest. A nil child is an
// empty subtree and is read as the empty commitment of the child depth.
type InternalNode struct {
	Left  *Hash
	Right *Hash
}

func NewInternalNode(left, right Hash) *InternalNode {
	return &InternalNode{Left: &left, Right: &right}
}

func (n *InternalNode) Encode() []byte {
	return encodeInternal(childBytes(n.Left), childBytes(n.Right))
}

func (n *InternalNode) Hash(hasher HashFunction) Hash {
	return hasher.Digest(n.Encode())
}

// Children returns both child digests, substituting empty for nil children.
func (n *InternalNode) Children(empty Hash) (left, right Hash) {
	left, right = empty, empty
	if n.Left != nil {
		left = *n.Left
	}
	if n.Right != nil {
		right = *n.Right
	}
	return left, right
}

// Child returns the child selected by bit (0 left, 1 right), substituting
// empty for a nil child.
func (n *InternalNode) Child(bit byte, empty Hash) Hash {
	left, right := n.Children(empty)
	if bit == 0 {
		return left
	}
	return right
}

func (n *InternalNode) node() {}

// LeafNode stores a value under the digest of its key.
type LeafNode struct {
	KeyHash Hash
	Value   []byte
}

func (n *LeafNode) Encode() []byte {
	return encodeLeaf(n.KeyHash[:], n.Value)
}

func (n *LeafNode) Hash(hasher HashFunction) Hash {
	return hasher.Digest(n.Encode())
}

func (n *LeafNode) node() {}

func childBytes(child *Hash) []byte {
	if child == nil {
		return nil
	}
	return child[:]
}
