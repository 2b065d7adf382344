package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

var _ RedisClient = (*redis.Client)(nil)

// ErrClusterUnsupported is returned when the store is pointed at a redis
// cluster.
var ErrClusterUnsupported = errors.New("redis cluster mode is not supported")

// RedisClient is the subset of the go-redis API the node store needs.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	TxPipeline() redis.Pipeliner
	Pipeline() redis.Pipeliner

	AddHook(hook redis.Hook)
	Close() error
}
