package cache

import (
	"context"
	"time"
)

// Backend is the raw byte-level key/value store used by an Adapter.
// Get returns ErrNotFound for missing or expired keys.
type Backend interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Close() error
}
