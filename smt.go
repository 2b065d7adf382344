// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/bnb-chain/cbor-smt/utils"
)

// Depth is the number of bits in a key digest and the depth of every leaf.
const Depth = HashSize * 8

var _ SparseMerkleTree = (*Tree)(nil)

// Tree is a sparse Merkle tree over 256-bit key digests. Every key is stored
// in a leaf at depth 256 along the path given by the bits of its digest;
// subtrees holding no keys are never stored and are represented by their
// empty commitment.
//
// Put and Delete replace the working root and must not be called
// concurrently on one Tree. Reads against a root that is no longer mutated,
// for instance through Snapshot, are safe from any number of goroutines
// since stored nodes never change.
type Tree struct {
	nodes   *nodeStorage
	empties *EmptyCommitments
	hasher  HashFunction
	root    *Hash // nil for the empty tree

	cacheSize int
}

// NewSparseMerkleTree returns a tree persisting its nodes into store.
func NewSparseMerkleTree(store NodeStore, opts ...Option) (*Tree, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	smt := &Tree{}
	for _, opt := range opts {
		opt(smt)
	}
	if smt.empties == nil {
		smt.empties = NewEmptyCommitments(NewBlake2bHasher())
	}
	smt.hasher = smt.empties.Hasher()
	nodes, err := newNodeStorage(store, smt.hasher, smt.cacheSize)
	if err != nil {
		return nil, err
	}
	smt.nodes = nodes
	if smt.root != nil && *smt.root == smt.empties.Root() {
		smt.root = nil
	}
	return smt, nil
}

// Root returns the current root; ok is false while the tree is empty.
func (tree *Tree) Root() (root Hash, ok bool) {
	if tree.root == nil {
		return Hash{}, false
	}
	return *tree.root, true
}

// Commitment returns the root, or the empty-tree commitment when there is none.
func (tree *Tree) Commitment() Hash {
	if tree.root == nil {
		return tree.empties.Root()
	}
	return *tree.root
}

func (tree *Tree) IsEmpty() bool {
	return tree.root == nil
}

// EmptyCommitments returns the table the tree hashes against.
func (tree *Tree) EmptyCommitments() *EmptyCommitments {
	return tree.empties
}

// Snapshot returns a tree pinned to the current root that shares storage
// with tree. Later mutations of either tree are not visible to the other.
func (tree *Tree) Snapshot() *Tree {
	snapshot := *tree
	if tree.root != nil {
		root := *tree.root
		snapshot.root = &root
	}
	return &snapshot
}

func (tree *Tree) setRoot(root Hash) {
	if tree.empties.IsEmpty(0, root) {
		tree.root = nil
		return
	}
	tree.root = &root
}

// Get returns the value stored under key; found is false if the key is absent.
func (tree *Tree) Get(key []byte) (val []byte, found bool, err error) {
	if key == nil {
		return nil, false, ErrInvalidKey
	}
	if tree.root == nil {
		return nil, false, nil
	}
	path := tree.hasher.Digest(key)
	current := *tree.root
	for depth := 0; depth <= Depth; depth++ {
		node, err := tree.nodes.mustLoad(current)
		if err != nil {
			return nil, false, err
		}
		switch n := node.(type) {
		case *LeafNode:
			if n.KeyHash != path {
				return nil, false, nil
			}
			return utils.CopyBytes(n.Value), true, nil
		case *InternalNode:
			if depth == Depth {
				return nil, false, errors.Wrapf(ErrMalformedNode, "internal node %s at leaf depth", current)
			}
			child := n.Child(bitAt(path, depth), tree.empties.At(depth+1))
			if tree.empties.IsEmpty(depth+1, child) {
				return nil, false, nil
			}
			current = child
		default:
			return nil, false, errors.Wrapf(ErrMalformedNode, "unexpected node type %T", node)
		}
	}
	return nil, false, errors.Wrap(ErrMalformedNode, "path longer than tree depth")
}

// Put stores val under key, replacing any previous value.
func (tree *Tree) Put(key, val []byte) error {
	if key == nil {
		return ErrInvalidKey
	}
	if val == nil {
		val = []byte{}
	}
	path := tree.hasher.Digest(key)
	root, err := tree.insertAt(tree.Commitment(), path, val, 0)
	if err != nil {
		return err
	}
	tree.setRoot(root)
	return nil
}

// MultiPut applies the items in order. Items applied before a failing item
// remain in the tree.
func (tree *Tree) MultiPut(items []Item) error {
	for i := range items {
		if err := tree.Put(items[i].Key, items[i].Val); err != nil {
			return err
		}
	}
	return nil
}

// insertAt stores (path, val) in the subtree current located at depth and
// returns the digest of the rebuilt subtree.
func (tree *Tree) insertAt(current, path Hash, val []byte, depth int) (Hash, error) {
	if tree.empties.IsEmpty(depth, current) {
		leaf, err := tree.nodes.persist(&LeafNode{KeyHash: path, Value: val})
		if err != nil {
			return Hash{}, err
		}
		return tree.chain(leaf, path, Depth, depth)
	}

	node, err := tree.nodes.mustLoad(current)
	if err != nil {
		return Hash{}, err
	}
	switch n := node.(type) {
	case *LeafNode:
		if n.KeyHash == path {
			return tree.nodes.persist(&LeafNode{KeyHash: path, Value: val})
		}
		diverge := firstDivergingBit(path, n.KeyHash, depth)
		if diverge == Depth {
			return Hash{}, errors.Wrapf(ErrKeyCollision, "key %s meets leaf %s at depth %d", path, n.KeyHash, depth)
		}
		leaf, err := tree.nodes.persist(&LeafNode{KeyHash: path, Value: val})
		if err != nil {
			return Hash{}, err
		}
		inserted, err := tree.chain(leaf, path, Depth, diverge+1)
		if err != nil {
			return Hash{}, err
		}
		existing, err := tree.chain(current, n.KeyHash, Depth, diverge+1)
		if err != nil {
			return Hash{}, err
		}
		branch, err := tree.persistInternal(bitAt(path, diverge), inserted, existing)
		if err != nil {
			return Hash{}, err
		}
		return tree.chain(branch, path, diverge, depth)
	case *InternalNode:
		if depth == Depth {
			return Hash{}, errors.Wrapf(ErrMalformedNode, "internal node %s at leaf depth", current)
		}
		bit := bitAt(path, depth)
		left, right := n.Children(tree.empties.At(depth + 1))
		taken, sibling := left, right
		if bit == 1 {
			taken, sibling = right, left
		}
		updated, err := tree.insertAt(taken, path, val, depth+1)
		if err != nil {
			return Hash{}, err
		}
		return tree.persistInternal(bit, updated, sibling)
	default:
		return Hash{}, errors.Wrapf(ErrMalformedNode, "unexpected node type %T", node)
	}
}

// chain hangs subtree, which sits at depth from, below a run of internal
// nodes up to depth to. Each new node pairs the subtree with an empty sibling
// on the side chosen by path.
func (tree *Tree) chain(subtree, path Hash, from, to int) (Hash, error) {
	var err error
	for d := from - 1; d >= to; d-- {
		subtree, err = tree.persistInternal(bitAt(path, d), subtree, tree.empties.At(d+1))
		if err != nil {
			return Hash{}, err
		}
	}
	return subtree, nil
}

// persistInternal stores an internal node holding taken on the side given by
// bit and sibling on the other.
func (tree *Tree) persistInternal(bit byte, taken, sibling Hash) (Hash, error) {
	if bit == 0 {
		return tree.nodes.persist(NewInternalNode(taken, sibling))
	}
	return tree.nodes.persist(NewInternalNode(sibling, taken))
}

type pathStep struct {
	depth       int
	left, right Hash
	wentLeft    bool
}

// Delete removes key. Deleting an absent key leaves the tree unchanged.
func (tree *Tree) Delete(key []byte) error {
	if key == nil {
		return ErrInvalidKey
	}
	if tree.root == nil {
		return nil
	}
	path := tree.hasher.Digest(key)
	steps := make([]pathStep, 0, Depth)
	current := *tree.root

descend:
	for depth := 0; ; depth++ {
		node, err := tree.nodes.mustLoad(current)
		if err != nil {
			return err
		}
		switch n := node.(type) {
		case *LeafNode:
			if n.KeyHash != path {
				return nil
			}
			break descend
		case *InternalNode:
			if depth == Depth {
				return errors.Wrapf(ErrMalformedNode, "internal node %s at leaf depth", current)
			}
			left, right := n.Children(tree.empties.At(depth + 1))
			step := pathStep{depth: depth, left: left, right: right, wentLeft: bitAt(path, depth) == 0}
			steps = append(steps, step)
			next := right
			if step.wentLeft {
				next = left
			}
			if tree.empties.IsEmpty(depth+1, next) {
				return nil
			}
			current = next
		default:
			return errors.Wrapf(ErrMalformedNode, "unexpected node type %T", node)
		}
	}

	// Fold back up with the leaf replaced by an empty position. Levels left
	// with two empty children collapse into the empty commitment.
	acc := tree.empties.At(len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		left, right := step.left, step.right
		if step.wentLeft {
			left = acc
		} else {
			right = acc
		}
		empty := tree.empties.At(step.depth + 1)
		if left == empty && right == empty {
			acc = tree.empties.At(step.depth)
			continue
		}
		var err error
		if acc, err = tree.nodes.persist(NewInternalNode(left, right)); err != nil {
			return err
		}
	}
	tree.setRoot(acc)
	return nil
}

// GetProof builds an inclusion proof for a present key and a non-inclusion
// proof otherwise. Missing or undecodable nodes on the path yield a
// non-inclusion proof, which will not verify against a sound root.
func (tree *Tree) GetProof(key []byte) (*Proof, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	proof := &Proof{Type: ProofNonInclusionEmpty}
	for d := 0; d < Depth; d++ {
		proof.Siblings[d] = tree.empties.At(d + 1)
	}
	if tree.root == nil {
		return proof, nil
	}
	path := tree.hasher.Digest(key)
	current := *tree.root
	for depth := 0; depth <= Depth; depth++ {
		node, found, err := tree.nodes.load(current)
		if err != nil {
			if errors.Is(err, ErrMalformedNode) {
				log.Debug("Malformed node on proof path", "node", current, "depth", depth, "err", err)
				return proof, nil
			}
			return nil, err
		}
		if !found {
			log.Debug("Missing node on proof path", "node", current, "depth", depth)
			return proof, nil
		}
		switch n := node.(type) {
		case *LeafNode:
			if n.KeyHash == path {
				proof.Type = ProofInclusion
				proof.Value = utils.CopyBytes(n.Value)
			}
			return proof, nil
		case *InternalNode:
			if depth == Depth {
				return proof, nil
			}
			bit := bitAt(path, depth)
			empty := tree.empties.At(depth + 1)
			proof.Siblings[depth] = n.Child(bit^1, empty)
			next := n.Child(bit, empty)
			if next == empty {
				return proof, nil
			}
			current = next
		default:
			return proof, nil
		}
	}
	return proof, nil
}

// VerifyProof checks proof against the current commitment of the tree.
func (tree *Tree) VerifyProof(key, val []byte, inclusion bool, proof *Proof) bool {
	return VerifyProof(tree.empties, tree.Commitment(), key, val, inclusion, proof)
}

// bitAt returns bit i of h, most significant bit first.
func bitAt(h Hash, i int) byte {
	return (h[i/8] >> (7 - uint(i%8))) & 1
}

// firstDivergingBit returns the first bit at or after from where a and b
// differ, or Depth if they agree on all remaining bits.
func firstDivergingBit(a, b Hash, from int) int {
	for i := from; i < Depth; i++ {
		if bitAt(a, i) != bitAt(b, i) {
			return i
		}
	}
	return Depth
}
