// Package redis implements a chicache driver on go-redis.
//
// The same driver serves a single node (*redis.Client) and Redis Cluster
// (*redis.ClusterClient). Mask operations on a cluster fan out to every master
// and merge the results, since KEYS, SCAN and scripts without declared keys
// only see the node they run on.
package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/chicache/driver"
	"github.com/unkn0wn-root/chicache/mask"
)

var ErrNilClient = errors.New("redis driver: nil client")

// eraseScript deletes keys matching ARGV[1] on the node it runs on. KEYS and
// DEL execute inside one script so no write can interleave. DEL is chunked to
// stay under Lua's unpack limit.
var eraseScript = goredis.NewScript(`
local keys = redis.call('KEYS', ARGV[1])
local n = 0
for i = 1, #keys, 500 do
  n = n + redis.call('DEL', unpack(keys, i, math.min(i + 499, #keys)))
end
return n
`)

const defaultScanCount = 1000

type Redis struct {
	rdb         goredis.UniversalClient
	cluster     *goredis.ClusterClient
	closeClient bool
	scanCount   int64
}

var (
	_ driver.Driver       = (*Redis)(nil)
	_ driver.Expirer      = (*Redis)(nil)
	_ driver.KeyLister    = (*Redis)(nil)
	_ driver.AtomicEraser = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool  // set true only if this driver exclusively owns the client
	ScanCount   int64 // SCAN COUNT hint; 0 => 1000
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	r := &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, scanCount: cfg.ScanCount}
	if r.scanCount <= 0 {
		r.scanCount = defaultScanCount
	}
	if cc, ok := cfg.Client.(*goredis.ClusterClient); ok {
		r.cluster = cc
	}
	return r, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

func (p *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return p.rdb.Expire(ctx, key, ttl).Err()
}

// Keys walks the keyspace with SCAN MATCH. On a cluster the per-master
// results are concatenated in completion order.
func (p *Redis) Keys(ctx context.Context, pt mask.Pattern) ([]string, error) {
	if p.cluster == nil {
		return p.scan(ctx, p.rdb, pt.Native())
	}
	var (
		mu  sync.Mutex
		out []string
	)
	err := p.cluster.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
		keys, err := p.scan(ctx, node, pt.Native())
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, keys...)
		mu.Unlock()
		return nil
	})
	return out, err
}

func (p *Redis) scan(ctx context.Context, c goredis.Cmdable, pattern string) ([]string, error) {
	var out []string
	iter := c.Scan(ctx, 0, pattern, p.scanCount).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	return out, iter.Err()
}

// EraseMatching runs the erase script. On a cluster it runs once per master;
// each node's deletion is atomic, the sum across nodes is not a snapshot.
func (p *Redis) EraseMatching(ctx context.Context, pt mask.Pattern) (int, error) {
	if p.cluster == nil {
		n, err := eraseScript.Run(ctx, p.rdb, nil, pt.Native()).Int64()
		return int(n), err
	}
	var (
		mu    sync.Mutex
		total int64
	)
	err := p.cluster.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
		n, err := eraseScript.Run(ctx, node, nil, pt.Native()).Int64()
		if err != nil {
			return err
		}
		mu.Lock()
		total += n
		mu.Unlock()
		return nil
	})
	return int(total), err
}

// Close releases the underlying redis client only when this driver owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
