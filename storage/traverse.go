package storage

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/database"
)

// ReferenceParser extracts the keys of the stored children referenced by an
// encoded node.
type ReferenceParser interface {
	References(data []byte) ([]NodeHashKey, error)
}

type nodeReferenceParser struct {
	empties *bsmt.EmptyCommitments
}

// NewNodeReferenceParser parses tree nodes. Nil children and children equal
// to an empty commitment are not stored and are left out.
func NewNodeReferenceParser(empties *bsmt.EmptyCommitments) ReferenceParser {
	return &nodeReferenceParser{empties: empties}
}

func (p *nodeReferenceParser) References(data []byte) ([]NodeHashKey, error) {
	node, err := bsmt.DecodeNode(data)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *bsmt.LeafNode:
		return nil, nil
	case *bsmt.InternalNode:
		refs := make([]NodeHashKey, 0, 2)
		for _, child := range []*bsmt.Hash{n.Left, n.Right} {
			if child == nil || p.empties.Contains(*child) {
				continue
			}
			refs = append(refs, NodeHashKeyFromHash(*child))
		}
		return refs, nil
	default:
		return nil, errors.Wrapf(bsmt.ErrMalformedNode, "unexpected node type %T", node)
	}
}

// visitedSet records visited nodes; add reports whether key was new.
type visitedSet interface {
	add(key NodeHashKey) bool
}

func (s NodeSet) add(key NodeHashKey) bool { return s.Add(key) }

// syncNodeSet is a NodeSet shared by concurrent traversals.
type syncNodeSet struct {
	lock sync.Mutex
	set  NodeSet
}

func newSyncNodeSet() *syncNodeSet {
	return &syncNodeSet{set: make(NodeSet)}
}

func (s *syncNodeSet) add(key NodeHashKey) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.set.Add(key)
}

func (s *syncNodeSet) contains(key NodeHashKey) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.set.Contains(key)
}

func (s *syncNodeSet) len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.set)
}

// TraverseFromRoot returns every stored node reachable from root, root
// included. Shared subtrees are visited once. A missing root yields an empty
// set and missing children are skipped; both are logged.
func (r *Repository) TraverseFromRoot(root RootHashKey) (NodeSet, error) {
	visited := make(NodeSet)
	if err := r.traverse(root, visited); err != nil {
		return nil, err
	}
	return visited, nil
}

// traverse adds the nodes reachable from root to visited.
func (r *Repository) traverse(root RootHashKey, visited visitedSet) error {
	key := root.NodeKey()
	data, err := r.nodes.Get(key.Bytes())
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			log.Warn("Traversal root is not stored", "root", root)
			return nil
		}
		return errors.Wrapf(err, "traverse root %s", root)
	}
	if !visited.add(key) {
		return nil
	}
	return r.visitChildren(key, data, visited)
}

func (r *Repository) visitChildren(key NodeHashKey, data []byte, visited visitedSet) error {
	children, err := r.parser.References(data)
	if err != nil {
		return errors.Wrapf(err, "parse node %s", key)
	}
	for _, child := range children {
		data, err := r.nodes.Get(child.Bytes())
		if err != nil {
			if errors.Is(err, database.ErrDatabaseNotFound) {
				log.Warn("Skipping missing child node", "parent", key, "child", child)
				continue
			}
			return errors.Wrapf(err, "traverse node %s", child)
		}
		if !visited.add(child) {
			continue
		}
		if err := r.visitChildren(child, data, visited); err != nil {
			return err
		}
	}
	return nil
}
