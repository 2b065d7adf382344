// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package redis

import "time"

// RedisConfig holds the connection settings for a single redis node.
type RedisConfig struct {
	Addr string

	// ClusterAddr is rejected by New with ErrClusterUnsupported. A cluster
	// spreads keys over slots, so SCAN would see one shard, MGET would fail
	// across slots and batches would not commit atomically.
	ClusterAddr []string

	Username string
	Password string

	PoolSize int

	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MinIdleConns       int
	MaxConnAge         time.Duration
	PoolFIFO           bool
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration

	// ScanCount is the COUNT hint passed to SCAN by iterators.
	ScanCount int64
}

// DefaultConfig returns a single node configuration for addr.
func DefaultConfig(addr string) *RedisConfig {
	return &RedisConfig{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		ScanCount:   defaultScanCount,
	}
}
