package redisx

import (
	"fmt"
	"time"
)

const (
	// Dedup of consumed events: dedup:{consumer_group}:{event_id} -> 1
	KeyDedup = "dedup:%s:%s"

	// Read-through order cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"
)

var (
	TTLDedup      = 48 * time.Hour
	TTLOrderCache = 5 * time.Minute
)

func key(format string, args ...any) string { return fmt.Sprintf(format, args...) }
