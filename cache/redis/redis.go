// Package redis provides a Redis-backed cache.Backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/salesswarm/cache"
)

// Options configures the Redis client.
type Options struct {
	// Password overrides any password embedded in the URL.
	Password string

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// ReadTimeout and WriteTimeout bound individual commands.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Backend stores cache entries as plain Redis strings with SET EX.
type Backend struct {
	client *goredis.Client
}

// New parses a redis:// or rediss:// URL and returns a Backend. No
// connection is made until the first command.
func New(url string, optFns ...func(o *Options)) (*Backend, error) {
	opts := Options{
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	ropts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Password != "" {
		ropts.Password = opts.Password
	}
	ropts.DialTimeout = opts.DialTimeout
	ropts.ReadTimeout = opts.ReadTimeout
	ropts.WriteTimeout = opts.WriteTimeout
	// a failed connect is final; do not retry behind the adapter's back
	ropts.MaxRetries = -1

	return &Backend{client: goredis.NewClient(ropts)}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client) *Backend {
	return &Backend{client: client}
}

// Ping implements cache.Backend.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Set implements cache.Backend.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// Get implements cache.Backend. A missing key maps to cache.ErrNotFound.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Del implements cache.Backend.
func (b *Backend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
