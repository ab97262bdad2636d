// Package salesswarm provides a high-level façade over the coordination core
// of a sales swarm: the worker registry, the event dispatcher and the state
// store with its session ledger. Most applications interact with this
// package by:
//  1. Opening a durable cache via OpenCache (optional; memory-only otherwise)
//  2. Creating a Swarm via New() or FromConfig()
//  3. Registering workers with a capability and a handler
//  4. Creating sessions and publishing events into them
//
// Instances share nothing; several swarms can live in one process.
package salesswarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/cache/redis"
	"github.com/hupe1980/salesswarm/cache/sqlite"
	"github.com/hupe1980/salesswarm/config"
	"github.com/hupe1980/salesswarm/core"
	"github.com/hupe1980/salesswarm/dispatch"
	"github.com/hupe1980/salesswarm/logging"
	"github.com/hupe1980/salesswarm/registry"
	"github.com/hupe1980/salesswarm/store"
	"github.com/hupe1980/salesswarm/workers"
)

// Options configures a Swarm.
type Options struct {
	// DispatchConfig sizes the delivery pool.
	DispatchConfig dispatch.Config

	// Cache is the durable tier behind the store. Defaults to an unavailable
	// adapter. If it implements io.Closer it is closed by Close.
	Cache core.DurableCache

	// TTL and CompanyIntelTTL override the store's cache expirations.
	TTL             time.Duration
	CompanyIntelTTL time.Duration

	// ErrorSink receives failed and panicking deliveries.
	ErrorSink func(*dispatch.DeliveryError)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Now is the clock used for record stamps and session timestamps.
	Now func() time.Time
}

// Swarm aggregates one registry, one store and one dispatcher.
type Swarm struct {
	opts       Options
	registry   *registry.Registry
	store      *store.Store
	dispatcher *dispatch.Dispatcher
}

// New creates a Swarm. Call Close to stop its delivery goroutines.
func New(optFns ...func(o *Options)) *Swarm {
	opts := Options{
		DispatchConfig:  dispatch.DefaultConfig,
		CompanyIntelTTL: cache.CompanyIntelTTL,
		Logger:          logging.NoOpLogger{},
		Now:             time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	reg := registry.New(func(o *registry.Options) { o.Logger = opts.Logger })

	st := store.New(func(o *store.Options) {
		o.Cache = opts.Cache
		o.TTL = opts.TTL
		o.CompanyIntelTTL = opts.CompanyIntelTTL
		o.Logger = opts.Logger
		o.Now = opts.Now
	})

	d := dispatch.New(reg, func(o *dispatch.Options) {
		o.Config = opts.DispatchConfig
		o.Ledger = st
		o.ErrorSink = opts.ErrorSink
		o.Logger = opts.Logger
		o.TracerProvider = opts.TracerProvider
		o.MeterProvider = opts.MeterProvider
	})

	return &Swarm{opts: opts, registry: reg, store: st, dispatcher: d}
}

// FromConfig creates a Swarm sized and connected as cfg describes. The cache
// is opened and pinged once; an unreachable cache leaves the swarm
// memory-only.
func FromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Swarm, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	adapter, err := OpenCache(ctx, cfg.Cache.URL, func(o *CacheOptions) {
		o.Password = cfg.Cache.Password
		o.Prefix = cfg.Cache.Prefix
		o.TTL = cfg.Cache.TTL
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return New(append([]func(o *Options){func(o *Options) {
		o.DispatchConfig = dispatch.Config{Workers: cfg.Dispatch.Workers, QueueSize: cfg.Dispatch.QueueSize}
		o.Cache = adapter
		o.TTL = cfg.Cache.TTL
		o.CompanyIntelTTL = cfg.Cache.CompanyIntelTTL
	}}, optFns...)...), nil
}

// Registry exposes the worker registry.
func (s *Swarm) Registry() *registry.Registry { return s.registry }

// Store exposes the state store and session ledger.
func (s *Swarm) Store() *store.Store { return s.store }

// Register declares a worker capability, replacing any earlier declaration
// under the same id.
func (s *Swarm) Register(capability core.WorkerCapability) error {
	return s.registry.Register(capability)
}

// RegisterHandler installs the handler invoked for a worker's deliveries.
func (s *Swarm) RegisterHandler(workerID string, handler core.Handler) error {
	return s.registry.RegisterHandler(workerID, handler)
}

// RegisterWorker declares a capability and installs its handler.
func (s *Swarm) RegisterWorker(capability core.WorkerCapability, handler core.Handler) error {
	if err := s.registry.Register(capability); err != nil {
		return err
	}
	return s.registry.RegisterHandler(capability.WorkerID, handler)
}

// RegisterStubWorkers registers the standard worker catalog with stub
// handlers wired to this swarm's store and dispatcher.
func (s *Swarm) RegisterStubWorkers(optFns ...func(o *workers.Options)) error {
	handlers := workers.NewStubs(s.store, s.dispatcher, optFns...).Handlers()
	for _, c := range workers.Catalog() {
		if err := s.RegisterWorker(c, handlers[c.WorkerID]); err != nil {
			return fmt.Errorf("register %s: %w", c.WorkerID, err)
		}
	}
	return nil
}

// Publish records ev in its session and queues it for every subscriber
// except its source.
func (s *Swarm) Publish(ctx context.Context, ev core.Event) error {
	return s.dispatcher.Publish(ctx, ev)
}

// Emit builds an event from payload and publishes it.
func (s *Swarm) Emit(ctx context.Context, sessionID, source string, payload core.Payload) error {
	return s.dispatcher.Publish(ctx, core.NewEvent(sessionID, source, payload))
}

// CreateSession starts a session. An empty id is replaced by a generated one.
func (s *Swarm) CreateSession(ctx context.Context, id, sessionContext string, metadata map[string]any) (*core.Session, bool) {
	return s.store.CreateSession(ctx, id, sessionContext, metadata)
}

// Session returns a copy of the session with id.
func (s *Swarm) Session(ctx context.Context, id string) (*core.Session, bool) {
	return s.store.Session(ctx, id)
}

// UpdateSession merges patch into the session metadata.
func (s *Swarm) UpdateSession(ctx context.Context, id string, patch map[string]any) bool {
	return s.store.UpdateSession(ctx, id, patch)
}

// EndSession marks the session ended.
func (s *Swarm) EndSession(ctx context.Context, id string) bool {
	return s.store.EndSession(ctx, id)
}

// AllSessionData returns the session together with the records stored under
// its id.
func (s *Swarm) AllSessionData(ctx context.Context, id string) (store.SessionData, bool) {
	return s.store.AllSessionData(ctx, id)
}

// RegisteredWorkerIDs returns the ids of every registered worker, sorted.
func (s *Swarm) RegisteredWorkerIDs() []string { return s.registry.WorkerIDs() }

// Status summarizes a running swarm.
type Status struct {
	Workers        []core.WorkerCapability `json:"workers"`
	ActiveSessions int                     `json:"active_sessions"`
	CacheAvailable bool                    `json:"cache_available"`
}

// Status reports the registered workers and the number of active sessions.
func (s *Swarm) Status() Status {
	return Status{
		Workers:        s.registry.Capabilities(),
		ActiveSessions: s.store.ActiveSessions(),
		CacheAvailable: s.opts.Cache != nil && s.opts.Cache.Available(),
	}
}

// Drain waits until every queued delivery, including those published by
// handlers along the way, has finished and the resulting session snapshots
// have reached the cache.
func (s *Swarm) Drain(ctx context.Context) error {
	if err := s.dispatcher.Drain(ctx); err != nil {
		return err
	}
	return s.store.Flush(ctx)
}

// Close stops the dispatcher, flushes pending session snapshots and closes
// the cache.
func (s *Swarm) Close(ctx context.Context) error {
	err := s.dispatcher.Close(ctx)
	err = errors.Join(err, s.store.Flush(ctx))
	if c, ok := s.opts.Cache.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// CacheOptions configures OpenCache.
type CacheOptions struct {
	// Password overrides a Redis URL password.
	Password string
	Prefix   string
	TTL      time.Duration
	Logger   logging.Logger
}

// OpenCache selects a cache backend by URL scheme and connects it once:
// redis:// and rediss:// use Redis, sqlite://path uses a local database file,
// and an empty URL yields a memory-only adapter. Malformed URLs are errors;
// an unreachable backend is not.
func OpenCache(ctx context.Context, url string, optFns ...func(o *CacheOptions)) (*cache.Adapter, error) {
	opts := CacheOptions{
		Prefix: cache.DefaultPrefix,
		TTL:    cache.DefaultTTL,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	var backend cache.Backend
	switch {
	case url == "":
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		b, err := redis.New(url, func(o *redis.Options) { o.Password = opts.Password })
		if err != nil {
			return nil, err
		}
		backend = b
	case strings.HasPrefix(url, "sqlite://"):
		b, err := sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
		if err != nil {
			opts.Logger.Warn("sqlite cache unavailable", "error", err.Error())
			break
		}
		backend = b
	default:
		return nil, fmt.Errorf("unsupported cache url %q", url)
	}

	adapter := cache.New(backend, func(o *cache.Options) {
		o.Prefix = opts.Prefix
		o.TTL = opts.TTL
		o.Logger = opts.Logger
	})
	adapter.Connect(ctx)
	return adapter, nil
}
