package storage

import (
	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/metrics"
)

// Option is a function that configures a Repository.
type Option func(*Repository)

// WithEmptyCommitments sets the table used to recognise implicit empty
// subtrees. It must match the table of the trees stored in the repository.
func WithEmptyCommitments(empties *bsmt.EmptyCommitments) Option {
	return func(r *Repository) {
		r.empties = empties
	}
}

// WithReferenceParser replaces the parser that extracts child references
// from raw node bytes during traversal.
func WithReferenceParser(parser ReferenceParser) Option {
	return func(r *Repository) {
		r.parser = parser
	}
}

func WithProgressReporter(reporter ProgressReporter) Option {
	return func(r *Repository) {
		r.reporter = reporter
	}
}

func EnableMetrics(m metrics.Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// GCOption is a function that configures a GarbageCollector.
type GCOption func(*GarbageCollector)

// BatchSize sets how many nodes the sweep deletes per engine batch.
func BatchSize(size int) GCOption {
	return func(gc *GarbageCollector) {
		if size > 0 {
			gc.batchSize = size
		}
	}
}

// Workers sets the size of the pool walking retained roots during the mark
// phase.
func Workers(n int) GCOption {
	return func(gc *GarbageCollector) {
		if n > 0 {
			gc.workers = n
		}
	}
}

func WithReporter(reporter ProgressReporter) GCOption {
	return func(gc *GarbageCollector) {
		gc.reporter = reporter
	}
}

type checkConfig struct {
	limited bool
	retain  int
}

// CheckOption configures PerformConsistencyCheck.
type CheckOption func(*checkConfig)

// CheckRetainingLatest audits only the latest n versions. Older versions are
// treated as pruned by a collection that retained the same n, so their
// missing nodes are not reported.
func CheckRetainingLatest(n int) CheckOption {
	return func(c *checkConfig) {
		c.limited, c.retain = true, n
	}
}
