package bsmt

// Option is a function that configures SMT.
type Option func(*Tree)

// WithEmptyCommitments injects a shared empty-commitment table. The tree
// hashes with the table's hash function. Without this option a Blake2b-256
// table is built for the tree.
func WithEmptyCommitments(empties *EmptyCommitments) Option {
	return func(smt *Tree) {
		smt.empties = empties
	}
}

// WithRoot opens the tree at an existing root.
func WithRoot(root Hash) Option {
	return func(smt *Tree) {
		smt.root = &root
	}
}

// NodeCacheSize keeps up to size decoded nodes in memory.
func NodeCacheSize(size int) Option {
	return func(smt *Tree) {
		smt.cacheSize = size
	}
}
