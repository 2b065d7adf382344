package metrics

type Metrics interface {
	// The latest version recorded in the root index
	Version(uint64)
	// The number of stored nodes
	NodeCount(uint64)
	// The total size of stored node data
	CurrentSize(uint64)
	// The number of nodes marked reachable by the last GC
	ReachableNodes(uint64)
	// The number of nodes deleted by the last GC
	DeletedNodes(uint64)
	// The highest version retained by the last GC
	LatestGCVersion(uint64)
	// The number of issues found by the last consistency check
	ConsistencyIssues(int)
}
