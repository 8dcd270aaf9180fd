package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Dedup marks consumed event ids per consumer group. Markers expire after
// TTLDedup; the database claims remain the source of truth past that.
type Dedup struct {
	rdb   redis.Cmdable
	group string
}

func NewDedup(rdb redis.Cmdable, group string) *Dedup {
	return &Dedup{rdb: rdb, group: group}
}

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.rdb, key(KeyDedup, d.group, eventID))
}

func (d *Dedup) Mark(ctx context.Context, eventID string) error {
	return d.rdb.Set(ctx, key(KeyDedup, d.group, eventID), 1, TTLDedup).Err()
}
