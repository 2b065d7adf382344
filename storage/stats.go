package storage

// GetTotalNodeCount scans the node namespace and counts the stored nodes.
// Reference-count entries are not nodes and are not counted.
func (r *Repository) GetTotalNodeCount() (uint64, error) {
	var count uint64
	err := r.scanNodes(func(NodeHashKey, []byte) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.NodeCount(count)
	}
	return count, nil
}

// GetTotalDataSize scans the node namespace and sums the encoded size of the
// stored nodes.
func (r *Repository) GetTotalDataSize() (uint64, error) {
	var size uint64
	err := r.scanNodes(func(_ NodeHashKey, data []byte) error {
		size += uint64(len(data))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.CurrentSize(size)
	}
	return size, nil
}
