package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/database"
	"github.com/bnb-chain/cbor-smt/database/memory"
)

type recordingMetrics struct {
	version   uint64
	nodes     uint64
	size      uint64
	reachable uint64
	deleted   uint64
	gcVersion uint64
	issues    int
}

func (m *recordingMetrics) Version(v uint64)         { m.version = v }
func (m *recordingMetrics) NodeCount(n uint64)       { m.nodes = n }
func (m *recordingMetrics) CurrentSize(n uint64)     { m.size = n }
func (m *recordingMetrics) ReachableNodes(n uint64)  { m.reachable = n }
func (m *recordingMetrics) DeletedNodes(n uint64)    { m.deleted = n }
func (m *recordingMetrics) LatestGCVersion(v uint64) { m.gcVersion = v }
func (m *recordingMetrics) ConsistencyIssues(n int)  { m.issues = n }

func newTestRepository(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	repo, err := NewRepository(memory.NewMemoryDB(), memory.NewMemoryDB(), opts...)
	require.NoError(t, err)
	return repo
}

// newTestTree opens a tree on the repository's node namespace.
func newTestTree(t *testing.T, repo *Repository, track bool, opts ...bsmt.Option) *bsmt.Tree {
	t.Helper()
	opts = append([]bsmt.Option{bsmt.WithEmptyCommitments(repo.EmptyCommitments())}, opts...)
	tree, err := bsmt.NewSparseMerkleTree(repo.NodeStore(track), opts...)
	require.NoError(t, err)
	return tree
}

func putKeys(t *testing.T, tree *bsmt.Tree, prefix string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s-%d", prefix, i)
		require.NoError(t, tree.Put([]byte(key), []byte("value-"+key)))
	}
}

func recordRoot(t *testing.T, repo *Repository, version bsmt.Version, tree *bsmt.Tree) RootHashKey {
	t.Helper()
	root, ok := tree.Root()
	require.True(t, ok)
	key := RootHashKeyFromHash(root)
	require.NoError(t, repo.PutRoot(version, key))
	return key
}

func testKey(i byte) NodeHashKey {
	return NodeHashKeyFromHash(bsmt.Hash{0xfe, i})
}

func TestNewRepository(t *testing.T) {
	_, err := NewRepository(nil, memory.NewMemoryDB())
	assert.ErrorIs(t, err, ErrNilDatabase)
	_, err = NewRepository(memory.NewMemoryDB(), nil)
	assert.ErrorIs(t, err, ErrNilDatabase)

	repo := newTestRepository(t, WithProgressReporter(nil))
	assert.NotNil(t, repo.reporter)
	assert.NotNil(t, repo.parser)
	assert.NotNil(t, repo.EmptyCommitments())
}

func TestRepository_Nodes(t *testing.T) {
	repo := newTestRepository(t)
	key := testKey(1)

	_, err := repo.GetNode(key)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	require.NoError(t, repo.PutNode(key, []byte("node")))
	data, err := repo.GetNode(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("node"), data)
	ok, err := repo.HasNode(key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.DeleteNode(key))
	ok, err = repo.HasNode(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.PutNodes(map[NodeHashKey][]byte{
		testKey(2): []byte("two"),
		testKey(3): []byte("three"),
	}))
	nodes, err := repo.GetNodes([]NodeHashKey{testKey(2), testKey(3), testKey(4)})
	require.NoError(t, err)
	assert.Equal(t, map[NodeHashKey][]byte{
		testKey(2): []byte("two"),
		testKey(3): []byte("three"),
	}, nodes)

	require.NoError(t, repo.DeleteNodes([]NodeHashKey{testKey(2), testKey(3)}))
	nodes, err = repo.GetNodes([]NodeHashKey{testKey(2), testKey(3)})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestRepository_NodeErrorsCarryContext(t *testing.T) {
	nodes := memory.NewMemoryDB()
	repo, err := NewRepository(nodes, memory.NewMemoryDB())
	require.NoError(t, err)
	require.NoError(t, nodes.Close())

	err = repo.PutNode(testKey(1), []byte("x"))
	assert.ErrorIs(t, err, database.ErrDatabaseClosed)
	assert.Contains(t, err.Error(), "put node "+testKey(1).String())

	_, err = repo.GetNode(testKey(1))
	assert.ErrorIs(t, err, database.ErrDatabaseClosed)
	assert.Contains(t, err.Error(), "get node")
}

func TestRepository_Roots(t *testing.T) {
	metrics := &recordingMetrics{}
	repo := newTestRepository(t, EnableMetrics(metrics))

	_, _, err := repo.GetLatestRoot()
	assert.ErrorIs(t, err, ErrRootNotFound)
	roots, err := repo.GetAllRoots()
	require.NoError(t, err)
	assert.Empty(t, roots)

	r1, r2, r3 := RootHashKeyFromHash(bsmt.Hash{1}), RootHashKeyFromHash(bsmt.Hash{2}), RootHashKeyFromHash(bsmt.Hash{3})
	require.NoError(t, repo.PutRoot(300, r3))
	require.NoError(t, repo.PutRoot(1, r1))
	require.NoError(t, repo.PutRoot(2, r2))
	assert.Equal(t, uint64(2), metrics.version)

	roots, err = repo.GetAllRoots()
	require.NoError(t, err)
	assert.Equal(t, []VersionedRoot{{1, r1}, {2, r2}, {300, r3}}, roots)

	version, latest, err := repo.GetLatestRoot()
	require.NoError(t, err)
	assert.Equal(t, bsmt.Version(300), version)
	assert.Equal(t, r3, latest)

	root, err := repo.GetRootByVersion(2)
	require.NoError(t, err)
	assert.Equal(t, r2, root)
	_, err = repo.GetRootByVersion(7)
	assert.ErrorIs(t, err, ErrRootNotFound)

	assert.ErrorIs(t, repo.DeleteRoot(2), ErrUnsupportedOperation)
	root, err = repo.GetRootByVersion(2)
	require.NoError(t, err)
	assert.Equal(t, r2, root)

	empty := RootHashKeyFromHash(repo.EmptyCommitments().Root())
	assert.ErrorIs(t, repo.PutRoot(4, empty), ErrEmptyRoot)
}

func TestRepository_MalformedRootEntry(t *testing.T) {
	roots := memory.NewMemoryDB()
	repo, err := NewRepository(memory.NewMemoryDB(), roots)
	require.NoError(t, err)
	require.NoError(t, roots.Set(versionKey(1), []byte{1, 2, 3}))

	_, err = repo.GetAllRoots()
	assert.ErrorIs(t, err, ErrMalformedEntry)
	_, err = repo.GetRootByVersion(1)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestRepository_RefCounts(t *testing.T) {
	nodes := memory.NewMemoryDB()
	repo, err := NewRepository(nodes, memory.NewMemoryDB())
	require.NoError(t, err)
	key := testKey(1)

	count, err := repo.GetNodeRefCount(key)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.SetNodeRefCount(key, 5))
	count, err = repo.IncrementNodeRefCount(key, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), count)

	_, err = repo.IncrementNodeRefCount(key, -8)
	assert.ErrorIs(t, err, ErrRefCountUnderflow)
	count, err = repo.GetNodeRefCount(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), count)

	// "ref:" + hash, 8-byte big-endian counter
	raw, err := nodes.Get(append([]byte("ref:"), key.Bytes()...))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 7}, raw)

	require.NoError(t, repo.SetNodeRefCounts(map[NodeHashKey]uint64{testKey(2): 1, testKey(3): 3}))
	err = repo.IncrementNodeRefCounts(map[NodeHashKey]int64{testKey(2): 4, testKey(3): -4})
	assert.ErrorIs(t, err, ErrRefCountUnderflow)
	count, err = repo.GetNodeRefCount(testKey(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "failed increments must not be written")

	require.NoError(t, repo.IncrementNodeRefCounts(map[NodeHashKey]int64{testKey(2): 4, testKey(3): -3}))
	count, err = repo.GetNodeRefCount(testKey(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
	count, err = repo.GetNodeRefCount(testKey(3))
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, nodes.Set(append([]byte("ref:"), testKey(9).Bytes()...), []byte{1}))
	_, err = repo.GetNodeRefCount(testKey(9))
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestRepository_Stats(t *testing.T) {
	metrics := &recordingMetrics{}
	repo := newTestRepository(t, EnableMetrics(metrics))

	require.NoError(t, repo.PutNode(testKey(1), []byte("abc")))
	require.NoError(t, repo.PutNode(testKey(2), []byte("de")))
	require.NoError(t, repo.SetNodeRefCount(testKey(1), 10))
	require.NoError(t, repo.SetNodeRefCount(testKey(7), 1))

	count, err := repo.GetTotalNodeCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
	size, err := repo.GetTotalDataSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)

	assert.Equal(t, uint64(2), metrics.nodes)
	assert.Equal(t, uint64(5), metrics.size)
}

func TestRepository_StatsRejectForeignKeys(t *testing.T) {
	nodes := memory.NewMemoryDB()
	repo, err := NewRepository(nodes, memory.NewMemoryDB())
	require.NoError(t, err)
	require.NoError(t, nodes.Set([]byte("short"), []byte("x")))

	_, err = repo.GetTotalNodeCount()
	assert.ErrorIs(t, err, ErrMalformedEntry)
}
