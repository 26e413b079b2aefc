package db

import (
	"context"
	"errors"
	"time"

	"github.com/go-gorm/caches/v4"
	"github.com/redis/go-redis/v9"
)

var _ caches.Cacher = (*redisCacher)(nil)

const (
	redisCacheTTL      = 5 * time.Minute
	redisScanBatchSize = 256
)

// redisCacher shares file listing results between clustered nodes. Keys live
// under prefix so one redis can serve several deployments.
type redisCacher struct {
	rdb    *redis.Client
	prefix string
}

func newRedisCacher(rdb *redis.Client, prefix string) *redisCacher {
	return &redisCacher{rdb: rdb, prefix: prefix}
}

func (c *redisCacher) key(key string) string {
	return c.prefix + key
}

func (c *redisCacher) Get(ctx context.Context, key string, q *caches.Query[any]) (*caches.Query[any], error) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	}

	if err := q.Unmarshal(raw); err != nil {
		return nil, err
	}

	return q, nil
}

func (c *redisCacher) Store(ctx context.Context, key string, val *caches.Query[any]) error {
	raw, err := val.Marshal()
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, c.key(key), raw, redisCacheTTL).Err()
}

// Invalidate drops every cached query, one scan page at a time.
func (c *redisCacher) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.key(caches.IdentifierPrefix)+"*", redisScanBatchSize).Iterator()

	batch := make([]string, 0, redisScanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisScanBatchSize {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return c.rdb.Del(ctx, batch...).Err()
	}

	return nil
}
