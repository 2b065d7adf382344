// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package storage

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

const (
	defaultGCBatchSize = 1024
	defaultGCWorkers   = 4

	phaseMark  = "gc-mark"
	phaseSweep = "gc-sweep"
)

// GCReport summarizes one garbage collection run.
type GCReport struct {
	ID            uuid.UUID
	RetainedRoots int
	Reachable     uint64
	Scanned       uint64
	Deleted       uint64
	FreedBytes    uint64
	Duration      time.Duration
}

// GarbageCollector deletes every stored node that no retained root reaches.
// Reference counts play no part in the decision. Trees must not be mutated
// while a collection runs.
type GarbageCollector struct {
	repo      *Repository
	batchSize int
	workers   int
	reporter  ProgressReporter
}

func NewGarbageCollector(repo *Repository, opts ...GCOption) (*GarbageCollector, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	gc := &GarbageCollector{
		repo:      repo,
		batchSize: defaultGCBatchSize,
		workers:   defaultGCWorkers,
		reporter:  repo.reporter,
	}
	for _, opt := range opts {
		opt(gc)
	}
	if gc.reporter == nil {
		gc.reporter = NoopReporter
	}
	return gc, nil
}

// CollectRetainingLatest retains the n highest versions of the root index
// and collects everything else. With n == 0 every node is deleted.
func (gc *GarbageCollector) CollectRetainingLatest(n int) (*GCReport, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidRetention, "retain %d", n)
	}
	roots, err := gc.repo.GetAllRoots()
	if err != nil {
		return nil, err
	}
	if n < len(roots) {
		roots = roots[len(roots)-n:]
	}
	retained := make([]RootHashKey, 0, len(roots))
	for _, root := range roots {
		retained = append(retained, root.Root)
	}
	ret, err := gc.Collect(retained)
	if err != nil {
		return nil, err
	}
	if len(roots) > 0 && gc.repo.metrics != nil {
		gc.repo.metrics.LatestGCVersion(uint64(roots[len(roots)-1].Version))
	}
	return ret, nil
}

// Collect marks every node reachable from retained and deletes all other
// nodes together with their reference-count entries.
func (gc *GarbageCollector) Collect(retained []RootHashKey) (*GCReport, error) {
	ret := &GCReport{ID: uuid.New(), RetainedRoots: len(retained)}
	start := time.Now()
	log.Info("Garbage collection started", "id", ret.ID, "retained", len(retained))

	reachable, err := gc.mark(retained)
	if err != nil {
		return nil, errors.Wrapf(err, "gc %s: mark", ret.ID)
	}
	ret.Reachable = uint64(reachable.len())

	if err := gc.sweep(reachable, ret); err != nil {
		return nil, errors.Wrapf(err, "gc %s: sweep", ret.ID)
	}
	ret.Duration = time.Since(start)

	if m := gc.repo.metrics; m != nil {
		m.ReachableNodes(ret.Reachable)
		m.DeletedNodes(ret.Deleted)
		m.NodeCount(ret.Scanned - ret.Deleted)
	}
	log.Info("Garbage collection finished", "id", ret.ID, "reachable", ret.Reachable,
		"scanned", ret.Scanned, "deleted", ret.Deleted, "freed", common.StorageSize(ret.FreedBytes), "elapsed", common.PrettyDuration(ret.Duration))
	return ret, nil
}

// mark walks the retained roots on a worker pool sharing one visited set.
func (gc *GarbageCollector) mark(retained []RootHashKey) (*syncNodeSet, error) {
	reachable := newSyncNodeSet()
	if len(retained) == 0 {
		report(gc.reporter, Progress{Phase: phaseMark})
		return reachable, nil
	}

	pool, err := ants.NewPool(gc.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		lock     sync.Mutex
		firstErr error
		done     uint64
	)
	total := uint64(len(retained))
	report(gc.reporter, Progress{Phase: phaseMark, Total: total})
	for _, root := range retained {
		root := root
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			err := gc.repo.traverse(root, reachable)

			lock.Lock()
			defer lock.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			done++
			report(gc.reporter, Progress{Phase: phaseMark, Processed: done, Total: total})
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, errors.Wrap(err, "submit traversal")
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return reachable, nil
}

type sweepCandidate struct {
	key  NodeHashKey
	size int
}

// sweep deletes every node outside reachable. Reference counts of surviving
// children are lowered for each deleted parent that pointed at them.
func (gc *GarbageCollector) sweep(reachable *syncNodeSet, ret *GCReport) error {
	var candidates []sweepCandidate
	released := make(map[NodeHashKey]uint64)
	err := gc.repo.scanNodes(func(key NodeHashKey, data []byte) error {
		ret.Scanned++
		if reachable.contains(key) {
			return nil
		}
		candidates = append(candidates, sweepCandidate{key: key, size: len(data)})
		children, err := gc.repo.parser.References(data)
		if err != nil {
			// an unparsable node is garbage like any other
			log.Debug("Sweeping unparsable node", "node", key, "err", err)
			return nil
		}
		for _, child := range children {
			if reachable.contains(child) {
				released[child]++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	total := uint64(len(candidates))
	report(gc.reporter, Progress{Phase: phaseSweep, Total: total})
	batch := gc.repo.nodes.NewBatch()
	pending := 0
	for i, candidate := range candidates {
		if err := batch.Delete(candidate.key.Bytes()); err != nil {
			return errors.Wrapf(err, "delete node %s", candidate.key)
		}
		if err := batch.Delete(refCountKey(candidate.key)); err != nil {
			return errors.Wrapf(err, "delete refcount %s", candidate.key)
		}
		ret.FreedBytes += uint64(candidate.size)
		pending++
		if pending < gc.batchSize && i != len(candidates)-1 {
			continue
		}
		if err := batch.Write(); err != nil {
			return errors.Wrapf(err, "write batch of %d deletions", pending)
		}
		batch.Reset()
		ret.Deleted += uint64(pending)
		pending = 0
		report(gc.reporter, Progress{Phase: phaseSweep, Processed: ret.Deleted, Total: total})
	}
	return gc.releaseChildren(released)
}

// releaseChildren lowers existing reference counts by the number of deleted
// parents, stopping at zero.
func (gc *GarbageCollector) releaseChildren(released map[NodeHashKey]uint64) error {
	if len(released) == 0 {
		return nil
	}
	return gc.repo.WithBatch(func(ctx *BatchContext) error {
		for key, n := range released {
			count, ok, err := readRefCount(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if n > count {
				log.Debug("Clamping refcount at zero", "node", key, "count", count, "released", n)
				n = count
			}
			if err := writeRefCount(ctx, key, count-n); err != nil {
				return err
			}
		}
		return nil
	})
}
