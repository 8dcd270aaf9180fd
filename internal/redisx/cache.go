package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONCache stores values of T as JSON under a formatted key.
type JSONCache[T any] struct {
	rdb    redis.Cmdable
	format string
	ttl    time.Duration
}

func NewJSONCache[T any](rdb redis.Cmdable, format string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{rdb: rdb, format: format, ttl: ttl}
}

// Get returns false on a miss.
func (c *JSONCache[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var v T
	b, err := c.rdb.Get(ctx, key(c.format, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (c *JSONCache[T]) Set(ctx context.Context, id string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(c.format, id), b, c.ttl).Err()
}

func (c *JSONCache[T]) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, key(c.format, id)).Err()
}
