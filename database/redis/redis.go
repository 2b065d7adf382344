// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package redis

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	stdErrors "github.com/pkg/errors"

	"github.com/bnb-chain/cbor-smt/database"
	"github.com/bnb-chain/cbor-smt/utils"
)

var (
	_ database.TreeDB   = (*Database)(nil)
	_ database.Batcher  = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)
)

const (
	defaultScanCount   = 1000
	defaultDialTimeout = 5 * time.Second
	mgetChunk          = 512
)

// New returns a wrapped Redis object.
func New(config *RedisConfig, opts ...Option) (*Database, error) {
	if len(config.ClusterAddr) > 0 {
		return nil, ErrClusterUnsupported
	}
	client := redis.NewClient(&redis.Options{
		Addr:               config.Addr,
		PoolSize:           config.PoolSize,
		Username:           config.Username,
		Password:           config.Password,
		MaxRetries:         config.MaxRetries,
		MinRetryBackoff:    config.MinRetryBackoff,
		MaxRetryBackoff:    config.MaxRetryBackoff,
		DialTimeout:        config.DialTimeout,
		ReadTimeout:        config.ReadTimeout,
		WriteTimeout:       config.WriteTimeout,
		MinIdleConns:       config.MinIdleConns,
		MaxConnAge:         config.MaxConnAge,
		PoolFIFO:           config.PoolFIFO,
		PoolTimeout:        config.PoolTimeout,
		IdleTimeout:        config.IdleTimeout,
		IdleCheckFrequency: config.IdleCheckFrequency,
	})
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	err := client.Ping(ctx).Err()
	if err != nil {
		client.Close()
		return nil, err
	}
	db := &Database{
		db:        client,
		scanCount: config.ScanCount,
	}

	for _, opt := range opts {
		opt.Apply(db)
	}

	return db, nil
}

// NewFromExistRedisClient returns a wrapped Redis object. The client must
// address a single node.
func NewFromExistRedisClient(client RedisClient, opts ...Option) (*Database, error) {
	if _, ok := client.(*redis.ClusterClient); ok {
		return nil, ErrClusterUnsupported
	}
	db := &Database{
		db: client,
	}
	for _, opt := range opts {
		opt.Apply(db)
	}
	return db, nil
}

// WrapWithNamespace returns a wrapped Redis object.
// The namespace is the prefix that the datastore.
func WrapWithNamespace(db *Database, namespace string) *Database {
	return &Database{
		namespace:  []byte(namespace),
		db:         db.db,
		sharedPipe: db.sharedPipe,
		scanCount:  db.scanCount,
	}
}

type Database struct {
	namespace  []byte
	db         RedisClient // redis client
	sharedPipe redis.Pipeliner
	scanCount  int64
}

// wrapKey returns a wrapper key with namespace.
func wrapKey(namespace, key []byte) string {
	if len(namespace) > 0 {
		return utils.BytesToString(bytes.Join([][]byte{namespace, key}, []byte(":")))
	}
	return string(key)
}

// Close flushes any pending data to disk and closes
// all io accesses to the underlying key-value store.
func (db *Database) Close() error {
	return db.db.Close()
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	dat, err := db.db.Exists(context.Background(), wrapKey(db.namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return dat > 0, nil
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(context.Background(), wrapKey(db.namespace, key)).Result()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return nil, database.ErrDatabaseNotFound
		}
		return nil, err
	}
	return []byte(dat), nil
}

// Set inserts the given value into the key-value store.
func (db *Database) Set(key []byte, value []byte) error {
	return db.db.Set(context.Background(), wrapKey(db.namespace, key), value, 0).Err()
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	return db.db.Del(context.Background(), wrapKey(db.namespace, key)).Err()
}

// NewIterator collects the keys matching prefix with SCAN and loads their
// values with MGET. Redis offers no ordered snapshot, so the key set is
// gathered up front and sorted.
func (db *Database) NewIterator(prefix []byte) database.Iterator {
	ctx := context.Background()
	count := db.scanCount
	if count <= 0 {
		count = defaultScanCount
	}
	pattern := escapePattern(wrapKey(db.namespace, prefix)) + "*"

	seen := make(map[string]struct{})
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := db.db.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return &iterator{index: -1, err: err}
		}
		for _, key := range page {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	sort.Strings(keys)

	strip := 0
	if len(db.namespace) > 0 {
		strip = len(db.namespace) + 1
	}
	it := &iterator{index: -1}
	for start := 0; start < len(keys); start += mgetChunk {
		end := start + mgetChunk
		if end > len(keys) {
			end = len(keys)
		}
		values, err := db.db.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return &iterator{index: -1, err: err}
		}
		for i, value := range values {
			str, ok := value.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			it.keys = append(it.keys, []byte(keys[start+i][strip:]))
			it.values = append(it.values, []byte(str))
		}
	}
	return it
}

// escapePattern quotes the glob metacharacters understood by SCAN MATCH.
func escapePattern(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (db *Database) NewBatch() database.Batcher {
	pipe := db.sharedPipe
	if pipe == nil {
		pipe = db.db.TxPipeline()
	}
	return &batch{
		db:        db.db,
		namespace: db.namespace,
		b:         pipe,
	}
}

// batch is a write-only redis transaction pipeline that commits changes to
// its host database when Write is called.
type batch struct {
	namespace []byte
	db        RedisClient
	b         redis.Pipeliner
	size      int
	lock      sync.RWMutex
}

// Set inserts the given value into the batch for later committing.
func (b *batch) Set(key, value []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.b.Set(context.Background(), wrapKey(b.namespace, key), utils.CopyBytes(value), 0)
	b.size += len(key) + len(value)
	return nil
}

// Delete inserts the a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.b.Del(context.Background(), wrapKey(b.namespace, key))
	b.size += len(key)
	return nil
}

// Write flushes any accumulated data to disk.
func (b *batch) Write() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.size == 0 {
		return nil
	}
	_, err := b.b.Exec(context.Background())
	if err != nil {
		return err
	}
	b.size = 0
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.size
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.b.Discard()
	b.size = 0
}

type iterator struct {
	index  int
	keys   [][]byte
	values [][]byte
	err    error
}

func (it *iterator) Next() bool {
	if it.err != nil || it.index >= len(it.keys) {
		return false
	}
	it.index++
	return it.index < len(it.keys)
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return it.keys[it.index]
}

func (it *iterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return it.values[it.index]
}

func (it *iterator) Release() {
	it.index, it.keys, it.values = -1, nil, nil
}
