package core

import (
	"context"
	"time"
)

// DurableCache is the best-effort key/value tier behind the state store.
// Implementations never return errors to callers: failures are logged and
// reported as false so callers can fall back to memory.
type DurableCache interface {
	Available() bool
	Put(ctx context.Context, namespace, key string, value any, ttl time.Duration) bool
	Get(ctx context.Context, namespace, key string, dst any) bool
	Delete(ctx context.Context, namespace, key string) bool
}
