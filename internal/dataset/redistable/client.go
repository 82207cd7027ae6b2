// Package redistable stores dataset tables as GeoJSON documents in Redis and
// serves them to the loader.
package redistable

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithDB(db int) Option {
	return func(o *redis.Options) { o.DB = db }
}

func WithPassword(p string) Option {
	return func(o *redis.Options) { o.Password = p }
}

type Client struct {
	rdb *redis.Client
}

func NewClient(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("redis_ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the value and whether the key exists.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp("redis_get", nil, time.Since(start).Seconds())
		return nil, false, nil
	}
	observability.ObserveStoreOp("redis_get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return b, true, nil
}

// Both scripts refuse a write whose sequence is not above the watermark kept
// in KEYS[3]. Sequences are compared as decimal strings so uint64 values
// survive Lua's float numbers.
const newerThanWatermark = `
local cur = redis.call('HGET', KEYS[3], ARGV[1])
if cur and (#cur > #ARGV[2] or (#cur == #ARGV[2] and cur >= ARGV[2])) then
  return 0
end
`

var putScript = redis.NewScript(newerThanWatermark + `
redis.call('SET', KEYS[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
return 1
`)

var delScript = redis.NewScript(newerThanWatermark + `
redis.call('DEL', KEYS[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
return 1
`)

// PutIndexed writes key, records field=seq in the index hash and raises the
// watermark, atomically. It reports false without writing when seq is not
// newer than the watermark of field.
func (c *Client) PutIndexed(ctx context.Context, key string, val []byte, index, watermark, field string, seq uint64) (bool, error) {
	start := time.Now()
	n, err := putScript.Run(ctx, c.rdb, []string{key, index, watermark},
		field, strconv.FormatUint(seq, 10), val).Int()
	observability.ObserveStoreOp("redis_put", err, time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("redis PUT %q: %w", key, err)
	}
	return n == 1, nil
}

// DelIndexed removes key and its index field and raises the watermark, under
// the same sequence rule as PutIndexed.
func (c *Client) DelIndexed(ctx context.Context, key, index, watermark, field string, seq uint64) (bool, error) {
	start := time.Now()
	n, err := delScript.Run(ctx, c.rdb, []string{key, index, watermark},
		field, strconv.FormatUint(seq, 10)).Int()
	observability.ObserveStoreOp("redis_del", err, time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("redis DEL %q: %w", key, err)
	}
	return n == 1, nil
}

func (c *Client) HGet(ctx context.Context, key, field string) (string, bool, error) {
	start := time.Now()
	v, err := c.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp("redis_hget", nil, time.Since(start).Seconds())
		return "", false, nil
	}
	observability.ObserveStoreOp("redis_hget", err, time.Since(start).Seconds())
	if err != nil {
		return "", false, fmt.Errorf("redis HGET %q: %w", key, err)
	}
	return v, true, nil
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	observability.ObserveStoreOp("redis_hgetall", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %q: %w", key, err)
	}
	return m, nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
