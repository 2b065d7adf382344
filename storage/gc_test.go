package storage

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/database/leveldb"
)

type syncRecorder struct {
	lock    sync.Mutex
	reports []Progress
}

func (r *syncRecorder) ReportProgress(p Progress) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reports = append(r.reports, p)
	return nil
}

func (r *syncRecorder) last(phase string) (Progress, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i := len(r.reports) - 1; i >= 0; i-- {
		if r.reports[i].Phase == phase {
			return r.reports[i], true
		}
	}
	return Progress{}, false
}

func TestNewGarbageCollector(t *testing.T) {
	_, err := NewGarbageCollector(nil)
	assert.ErrorIs(t, err, ErrNilRepository)

	gc, err := NewGarbageCollector(newTestRepository(t), BatchSize(0), Workers(-1), WithReporter(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultGCBatchSize, gc.batchSize)
	assert.Equal(t, defaultGCWorkers, gc.workers)
	assert.NotNil(t, gc.reporter)
}

func TestGarbageCollector_RetainLatest(t *testing.T) {
	metrics := &recordingMetrics{}
	repo := newTestRepository(t, EnableMetrics(metrics))
	tree := newTestTree(t, repo, true)

	putKeys(t, tree, "gc", 10)
	recordRoot(t, repo, 1, tree)
	require.NoError(t, tree.Delete([]byte("gc-4")))
	require.NoError(t, tree.Put([]byte("gc-0"), []byte("rewritten")))
	latest := recordRoot(t, repo, 2, tree)

	before, err := repo.GetTotalNodeCount()
	require.NoError(t, err)
	reachable, err := repo.TraverseFromRoot(latest)
	require.NoError(t, err)

	recorder := &syncRecorder{}
	gc, err := NewGarbageCollector(repo, BatchSize(7), Workers(2), WithReporter(recorder))
	require.NoError(t, err)
	ret, err := gc.CollectRetainingLatest(1)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ret.ID)
	assert.Equal(t, 1, ret.RetainedRoots)
	assert.Equal(t, uint64(len(reachable)), ret.Reachable)
	assert.Equal(t, before, ret.Scanned)
	assert.Equal(t, before-uint64(len(reachable)), ret.Deleted)
	assert.Positive(t, ret.FreedBytes)

	after, err := repo.GetTotalNodeCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(reachable)), after)

	assert.Equal(t, ret.Deleted, metrics.deleted)
	assert.Equal(t, ret.Reachable, metrics.reachable)
	assert.Equal(t, uint64(2), metrics.gcVersion)

	for _, phase := range []string{phaseMark, phaseSweep} {
		p, ok := recorder.last(phase)
		require.True(t, ok, phase)
		assert.Equal(t, float64(100), p.Percent(), phase)
	}

	reopened := newTestTree(t, repo, false, bsmt.WithRoot(latest.Hash()))
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("gc-%d", i))
		value, found, err := reopened.Get(key)
		require.NoError(t, err)
		switch i {
		case 4:
			assert.False(t, found)
		case 0:
			assert.Equal(t, []byte("rewritten"), value)
		default:
			assert.Equal(t, []byte("value-gc-"+fmt.Sprint(i)), value)
		}
		proof, err := reopened.GetProof(key)
		require.NoError(t, err)
		assert.True(t, reopened.VerifyProof(key, value, found, proof))
	}

	// only the dropped version is reported; swept nodes took their
	// refcount entries with them
	issues, err := repo.PerformConsistencyCheck()
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Contains(t, issues[0], "root of version 1 is missing node")

	issues, err = repo.PerformConsistencyCheck(CheckRetainingLatest(1))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestGarbageCollector_RetainNothing(t *testing.T) {
	repo := newTestRepository(t)
	tree := newTestTree(t, repo, true)
	putKeys(t, tree, "gone", 5)
	recordRoot(t, repo, 1, tree)

	gc, err := NewGarbageCollector(repo)
	require.NoError(t, err)
	ret, err := gc.Collect(nil)
	require.NoError(t, err)
	assert.Zero(t, ret.Reachable)
	assert.Equal(t, ret.Scanned, ret.Deleted)

	count, err := repo.GetTotalNodeCount()
	require.NoError(t, err)
	assert.Zero(t, count)
	it := repo.nodes.NewIterator(nil)
	defer it.Release()
	assert.False(t, it.Next(), "refcount entries must be swept too")

	_, err = gc.CollectRetainingLatest(-1)
	assert.ErrorIs(t, err, ErrInvalidRetention)
}

func TestGarbageCollector_KeepsSharedSubtrees(t *testing.T) {
	repo := newTestRepository(t)
	tree := newTestTree(t, repo, false)
	putKeys(t, tree, "base", 16)
	v1 := recordRoot(t, repo, 1, tree)
	require.NoError(t, tree.Put([]byte("base-3"), []byte("changed")))
	v2 := recordRoot(t, repo, 2, tree)
	require.NoError(t, tree.Put([]byte("base-9"), []byte("changed")))
	recordRoot(t, repo, 3, tree)

	gc, err := NewGarbageCollector(repo, Workers(4))
	require.NoError(t, err)
	_, err = gc.Collect([]RootHashKey{v1, v2})
	require.NoError(t, err)

	for version, root := range map[int]RootHashKey{1: v1, 2: v2} {
		view := newTestTree(t, repo, false, bsmt.WithRoot(root.Hash()))
		for i := 0; i < 16; i++ {
			key := []byte(fmt.Sprintf("base-%d", i))
			_, found, err := view.Get(key)
			require.NoError(t, err, "version %d", version)
			assert.True(t, found, "version %d key %s", version, key)
		}
	}
}

func TestGarbageCollector_RefCountsOfSurvivors(t *testing.T) {
	repo := newTestRepository(t)
	tree := newTestTree(t, repo, true)
	require.NoError(t, tree.Put([]byte("a"), []byte("1")))
	recordRoot(t, repo, 1, tree)
	require.NoError(t, tree.Put([]byte("b"), []byte("2")))
	latest := recordRoot(t, repo, 2, tree)

	gc, err := NewGarbageCollector(repo)
	require.NoError(t, err)
	_, err = gc.Collect([]RootHashKey{latest})
	require.NoError(t, err)

	// every surviving child is referenced by exactly one surviving parent
	nodes, err := repo.TraverseFromRoot(latest)
	require.NoError(t, err)
	for key := range nodes {
		if key == latest.NodeKey() {
			continue
		}
		refs, err := repo.GetNodeRefCount(key)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), refs, "node %s", key)
	}
}

func TestGarbageCollector_LevelDB(t *testing.T) {
	db, err := leveldb.New(t.TempDir(), 16, 16, false)
	require.NoError(t, err)
	defer db.Close()

	repo, err := NewRepository(leveldb.WrapWithNamespace(db, "nodes"), leveldb.WrapWithNamespace(db, "roots"))
	require.NoError(t, err)
	tree := newTestTree(t, repo, true)
	putKeys(t, tree, "ldb", 6)
	recordRoot(t, repo, 1, tree)
	require.NoError(t, tree.Delete([]byte("ldb-2")))
	latest := recordRoot(t, repo, 2, tree)

	gc, err := NewGarbageCollector(repo, BatchSize(5))
	require.NoError(t, err)
	ret, err := gc.CollectRetainingLatest(1)
	require.NoError(t, err)
	assert.Positive(t, ret.Deleted)

	roots, err := repo.GetAllRoots()
	require.NoError(t, err)
	assert.Len(t, roots, 2, "collection never touches the root index")

	view := newTestTree(t, repo, false, bsmt.WithRoot(latest.Hash()))
	value, found, err := view.Get([]byte("ldb-5"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value-ldb-5"), value)
}

// TestGarbageCollector_Fuzz interleaves random mutations, retention choices,
// collections and queries, and checks that every retained version still
// answers every query exactly as it did when it was recorded.
func TestGarbageCollector_Fuzz(t *testing.T) {
	for _, seed := range []int64{1, 7, 2022} {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			fuzzGarbageCollector(t, rand.New(rand.NewSource(seed)))
		})
	}
}

func fuzzGarbageCollector(t *testing.T, rnd *rand.Rand) {
	repo := newTestRepository(t)
	tree := newTestTree(t, repo, rnd.Intn(2) == 0)
	gc, err := NewGarbageCollector(repo, BatchSize(1+rnd.Intn(16)), Workers(1+rnd.Intn(4)))
	require.NoError(t, err)

	const keySpace = 24
	model := map[string]string{}
	alive := map[bsmt.Version]map[string]string{}
	roots := map[bsmt.Version]RootHashKey{}
	var (
		version bsmt.Version
		current *bsmt.Version
	)

	for step := 0; step < 120; step++ {
		key := fmt.Sprintf("key-%d", rnd.Intn(keySpace))
		switch op := rnd.Intn(10); {
		case op < 6:
			value := fmt.Sprintf("v%d-%d", step, rnd.Intn(1000))
			require.NoError(t, tree.Put([]byte(key), []byte(value)))
			model[key] = value
		case op < 9:
			require.NoError(t, tree.Delete([]byte(key)))
			delete(model, key)
		default:
			retained := []RootHashKey{}
			for v := range alive {
				if current != nil && v == *current || rnd.Intn(2) == 0 {
					retained = append(retained, roots[v])
					continue
				}
				delete(alive, v)
			}
			_, err := gc.Collect(retained)
			require.NoError(t, err)
			checkVersions(t, repo, alive, roots)
			continue
		}

		root, ok := tree.Root()
		if !ok {
			current = nil
			continue
		}
		version++
		v := version
		current = &v
		roots[v] = RootHashKeyFromHash(root)
		require.NoError(t, repo.PutRoot(v, roots[v]))
		snapshot := make(map[string]string, len(model))
		for k, val := range model {
			snapshot[k] = val
		}
		alive[v] = snapshot
	}

	_, err = gc.Collect(retainedRoots(alive, roots))
	require.NoError(t, err)
	checkVersions(t, repo, alive, roots)
}

func retainedRoots(alive map[bsmt.Version]map[string]string, roots map[bsmt.Version]RootHashKey) []RootHashKey {
	versions := make([]bsmt.Version, 0, len(alive))
	for v := range alive {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	ret := make([]RootHashKey, 0, len(versions))
	for _, v := range versions {
		ret = append(ret, roots[v])
	}
	return ret
}

func checkVersions(t *testing.T, repo *Repository, alive map[bsmt.Version]map[string]string, roots map[bsmt.Version]RootHashKey) {
	t.Helper()
	for v, expected := range alive {
		view := newTestTree(t, repo, false, bsmt.WithRoot(roots[v].Hash()))
		for i := 0; i < 24; i++ {
			key := fmt.Sprintf("key-%d", i)
			value, found, err := view.Get([]byte(key))
			require.NoError(t, err, "version %d key %s", v, key)
			want, present := expected[key]
			require.Equal(t, present, found, "version %d key %s", v, key)
			if present {
				require.Equal(t, want, string(value))
			}
			proof, err := view.GetProof([]byte(key))
			require.NoError(t, err)
			require.True(t, view.VerifyProof([]byte(key), value, present, proof), "version %d key %s", v, key)
		}
	}
}
