package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryBackend is a process-local Backend useful for tests and for running
// without an external cache. Values are copied on Set and Get so callers can
// never mutate stored bytes. Expired entries are dropped lazily on access.
type InMemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time

	// PingErr, when set, is returned by Ping. Tests use it to simulate an
	// unreachable server.
	PingErr error
}

type memEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// NewInMemoryBackend returns an empty in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{entries: make(map[string]memEntry), now: time.Now}
}

// Ping implements Backend.
func (b *InMemoryBackend) Ping(context.Context) error { return b.PingErr }

// Set stores (or overwrites) a copy of value under key.
func (b *InMemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	e := memEntry{data: cp}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.entries[key] = e
	return nil
}

// Get returns a copy of the stored bytes or ErrNotFound.
func (b *InMemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, nil
}

// Del removes key. Deleting a missing key is not an error.
func (b *InMemoryBackend) Del(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Keys returns the stored keys, including ones that have expired but not yet
// been evicted.
func (b *InMemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	return keys
}

// Close implements Backend.
func (b *InMemoryBackend) Close() error { return nil }
