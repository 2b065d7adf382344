package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bnb-chain/cbor-smt/metrics"
)

var _ metrics.Metrics = (*Collector)(nil)

// NewCollector registers the tree gauges with the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegisterer(prometheus.DefaultRegisterer)
}

func NewCollectorWithRegisterer(registerer prometheus.Registerer) *Collector {
	currentVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_current_version",
		Help: "The latest version recorded in the root index",
	})
	nodeCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_node_count",
		Help: "The number of stored nodes",
	})
	currentSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_tree_size",
		Help: "The total size of stored node data",
	})
	reachableNodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_gc_reachable_nodes",
		Help: "The number of nodes marked reachable by the last GC",
	})
	deletedNodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_gc_deleted_nodes",
		Help: "The number of nodes deleted by the last GC",
	})
	latestGCVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_latest_gc_version",
		Help: "The highest version retained by the last GC",
	})
	consistencyIssues := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smt_consistency_issues",
		Help: "The number of issues found by the last consistency check",
	})
	registerer.MustRegister(
		currentVersion,
		nodeCount,
		currentSize,
		reachableNodes,
		deletedNodes,
		latestGCVersion,
		consistencyIssues)

	return &Collector{
		currentVersion:    currentVersion,
		nodeCount:         nodeCount,
		currentSize:       currentSize,
		reachableNodes:    reachableNodes,
		deletedNodes:      deletedNodes,
		latestGCVersion:   latestGCVersion,
		consistencyIssues: consistencyIssues,
	}
}

type Collector struct {
	currentVersion    prometheus.Gauge
	nodeCount         prometheus.Gauge
	currentSize       prometheus.Gauge
	reachableNodes    prometheus.Gauge
	deletedNodes      prometheus.Gauge
	latestGCVersion   prometheus.Gauge
	consistencyIssues prometheus.Gauge
}

func (c *Collector) Version(ver uint64) {
	c.currentVersion.Set(float64(ver))
}

func (c *Collector) NodeCount(n uint64) {
	c.nodeCount.Set(float64(n))
}

func (c *Collector) CurrentSize(size uint64) {
	c.currentSize.Set(float64(size))
}

func (c *Collector) ReachableNodes(n uint64) {
	c.reachableNodes.Set(float64(n))
}

func (c *Collector) DeletedNodes(n uint64) {
	c.deletedNodes.Set(float64(n))
}

func (c *Collector) LatestGCVersion(ver uint64) {
	c.latestGCVersion.Set(float64(ver))
}

func (c *Collector) ConsistencyIssues(n int) {
	c.consistencyIssues.Set(float64(n))
}
