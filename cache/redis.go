package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultScanCount = 100

// RedisStore is a Store on top of go-redis.
type RedisStore struct {
	redis     redis.UniversalClient
	scanCount int64
}

// NewRedisStore wraps client. scanCount sizes each SCAN page; zero selects 100.
func NewRedisStore(client redis.UniversalClient, scanCount int64) *RedisStore {
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &RedisStore{redis: client, scanCount: scanCount}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return b, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteMatching walks the keyspace with SCAN MATCH and unlinks each page.
// SCAN returns every key present for the whole iteration at least once, which
// gives the pre-scan guarantee of Store. Keys are unlinked page by page so no
// single command blocks the server for the full keyspace.
//
// SCAN only covers the node it is sent to, so a cluster client scans every
// master. Keys on one master can hash to different slots, so there each key
// is unlinked on its own inside a pipeline.
func (s *RedisStore) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	cluster, ok := s.redis.(*redis.ClusterClient)
	if !ok {
		return s.scanUnlink(ctx, s.redis, pattern, false)
	}

	var deleted atomic.Int64
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		n, err := s.scanUnlink(ctx, node, pattern, true)
		deleted.Add(int64(n))
		return err
	})
	if err != nil {
		return int(deleted.Load()), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(deleted.Load()), nil
}

func (s *RedisStore) scanUnlink(ctx context.Context, c redis.Cmdable, pattern string, perKey bool) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := unlink(ctx, c, keys, perKey)
			deleted += n
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func unlink(ctx context.Context, c redis.Cmdable, keys []string, perKey bool) (int, error) {
	if !perKey {
		n, err := c.Unlink(ctx, keys...).Result()
		return int(n), err
	}
	cmds, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Unlink(ctx, k)
		}
		return nil
	})
	n := 0
	for _, cmd := range cmds {
		if ic, ok := cmd.(*redis.IntCmd); ok {
			n += int(ic.Val())
		}
	}
	return n, err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
