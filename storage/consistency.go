package storage

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/utils"
)

const phaseConsistency = "consistency"

// PerformConsistencyCheck audits the repository without modifying it and
// returns a description of every issue found:
//   - roots of the index whose node is not stored,
//   - reference-count entries without a stored node,
//   - reference-count entries that are malformed,
//   - nodes reachable from an indexed root whose reference count is zero,
//   - malformed nodes reachable from an indexed root.
//
// Issues are returned as data; the error is reserved for engine failures.
// Versions left out by CheckRetainingLatest are neither checked nor walked.
func (r *Repository) PerformConsistencyCheck(opts ...CheckOption) ([]string, error) {
	var config checkConfig
	for _, opt := range opts {
		opt(&config)
	}
	if config.limited && config.retain < 0 {
		return nil, ErrInvalidRetention
	}
	roots, err := r.GetAllRoots()
	if err != nil {
		return nil, err
	}
	var pruned int
	if config.limited && config.retain < len(roots) {
		pruned = len(roots) - config.retain
		roots = roots[pruned:]
	}
	total := uint64(len(roots)) + 1
	report(r.reporter, Progress{Phase: phaseConsistency, Total: total})

	stored := make(NodeSet)
	refCounts := make(map[NodeHashKey]uint64)
	var issues, malformed []string

	it := r.nodes.NewIterator(nil)
	for it.Next() {
		raw := it.Key()
		if !isRefCountKey(raw) {
			if key, err := NewNodeHashKey(raw); err == nil {
				stored.Add(key)
			}
			continue
		}
		key, _ := NewNodeHashKey(raw[len(refCountPrefix):])
		count, ok := utils.BytesToUint64(it.Value())
		if !ok {
			malformed = append(malformed, fmt.Sprintf("malformed refcount entry for node %s", key))
			continue
		}
		refCounts[key] = count
	}
	err = it.Error()
	it.Release()
	if err != nil {
		return nil, errors.Wrap(err, "consistency check: scan nodes")
	}
	report(r.reporter, Progress{Phase: phaseConsistency, Processed: 1, Total: total})

	for _, root := range roots {
		if !stored.Contains(root.Root.NodeKey()) {
			issues = append(issues, fmt.Sprintf("root of version %d is missing node %s", root.Version, root.Root))
		}
	}

	var orphans []string
	for key := range refCounts {
		if !stored.Contains(key) {
			orphans = append(orphans, fmt.Sprintf("refcount entry without node %s", key))
		}
	}
	sort.Strings(orphans)
	sort.Strings(malformed)
	issues = append(issues, orphans...)
	issues = append(issues, malformed...)

	reachable := make(NodeSet)
	var drift []string
	for i, root := range roots {
		if err := r.traverse(root.Root, reachable); err != nil {
			if !errors.Is(err, bsmt.ErrMalformedNode) {
				return nil, err
			}
			drift = append(drift, fmt.Sprintf("root of version %d reaches a malformed node: %v", root.Version, err))
		}
		report(r.reporter, Progress{Phase: phaseConsistency, Processed: uint64(i) + 2, Total: total})
	}
	for key := range reachable {
		if count, ok := refCounts[key]; ok && count == 0 {
			drift = append(drift, fmt.Sprintf("reachable node %s has a zero refcount", key))
		}
	}
	sort.Strings(drift)
	issues = append(issues, drift...)

	if r.metrics != nil {
		r.metrics.ConsistencyIssues(len(issues))
	}
	if len(issues) > 0 {
		log.Warn("Consistency check found issues", "roots", len(roots), "pruned", pruned, "nodes", len(stored), "issues", len(issues))
	} else {
		log.Info("Consistency check passed", "roots", len(roots), "pruned", pruned, "nodes", len(stored))
	}
	return issues, nil
}
