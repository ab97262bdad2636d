package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/salesswarm/logging"
)

const (
	// DefaultPrefix is the first segment of every key.
	DefaultPrefix = "salesswarm"

	// DefaultTTL applies to every namespace except company intel.
	DefaultTTL = 24 * time.Hour

	// CompanyIntelTTL is the expiry for scraped company intelligence.
	CompanyIntelTTL = 7 * 24 * time.Hour
)

// Namespaces used by the state store and session ledger.
const (
	NamespaceSession       = "session"
	NamespaceCampaign      = "campaign"
	NamespaceEnrichment    = "enrichment"
	NamespaceQualification = "qualification"
	NamespaceCompanyIntel  = "company_intel"
)

// EmailNamespace is the per-campaign namespace for email sequences.
func EmailNamespace(campaignID string) string { return "email:" + campaignID }

// HashKey returns a short content hash used in place of long or sensitive
// identifiers such as URLs.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// Options configures an Adapter.
type Options struct {
	// Prefix is prepended to every key. Defaults to DefaultPrefix.
	Prefix string

	// TTL is used when Put is called with a non-positive ttl.
	TTL time.Duration

	// Logger receives degradation warnings and per-operation failures.
	Logger logging.Logger
}

// Adapter is a best-effort JSON cache over a Backend. None of its operations
// return errors: failures are logged and reported as false.
//
// Availability is decided once by Connect and never revisited; an adapter
// that failed to connect stays memory-only for the life of the process.
type Adapter struct {
	backend Backend
	prefix  string
	ttl     time.Duration
	logger  logging.Logger

	connectOnce sync.Once
	available   atomic.Bool
}

// New creates an adapter over backend. A nil backend models a cache that is
// not installed; the adapter is then permanently unavailable.
func New(backend Backend, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Prefix: DefaultPrefix,
		TTL:    DefaultTTL,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Adapter{
		backend: backend,
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		logger:  opts.Logger,
	}
}

// Connect pings the backend once. Subsequent calls return the cached result.
func (a *Adapter) Connect(ctx context.Context) bool {
	a.connectOnce.Do(func() {
		if a.backend == nil {
			a.logger.Warn("durable cache not configured, running memory-only")
			return
		}
		if err := a.backend.Ping(ctx); err != nil {
			a.logger.Warn("durable cache unavailable, running memory-only", "error", err.Error())
			return
		}
		a.available.Store(true)
		a.logger.Info("durable cache connected", "prefix", a.prefix)
	})
	return a.available.Load()
}

// Available reports whether Connect succeeded.
func (a *Adapter) Available() bool { return a.available.Load() }

// Key builds the full backend key for namespace and key.
func (a *Adapter) Key(namespace, key string) string {
	parts := make([]string, 0, 3)
	if a.prefix != "" {
		parts = append(parts, a.prefix)
	}
	return strings.Join(append(parts, namespace, key), ":")
}

// Put JSON-encodes value and stores it with the given expiry (the adapter's
// default when ttl <= 0).
func (a *Adapter) Put(ctx context.Context, namespace, key string, value any, ttl time.Duration) bool {
	if !a.Available() {
		return false
	}
	if ttl <= 0 {
		ttl = a.ttl
	}
	k := a.Key(namespace, key)
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Warn("cache encode failed", "key", k, "error", err.Error())
		return false
	}
	if err := a.backend.Set(ctx, k, data, ttl); err != nil {
		a.logger.Warn("cache put failed", "key", k, "error", err.Error())
		return false
	}
	a.logger.Debug("cache put", "key", k, "ttl", ttl.String())
	return true
}

// Get decodes the value stored under namespace and key into dst. It returns
// false on a miss, on any failure, or when the cache is unavailable; dst is
// left untouched unless decoding succeeds. A successful decode replaces the
// value dst points to rather than merging into it.
func (a *Adapter) Get(ctx context.Context, namespace, key string, dst any) bool {
	if !a.Available() {
		return false
	}
	k := a.Key(namespace, key)
	data, err := a.backend.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.logger.Warn("cache get failed", "key", k, "error", err.Error())
		}
		return false
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		a.logger.Warn("cache decode failed", "key", k, "error", "destination must be a non-nil pointer")
		return false
	}
	// decode into a fresh value; Unmarshal may fill fields before failing
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, tmp.Interface()); err != nil {
		a.logger.Warn("cache decode failed", "key", k, "error", err.Error())
		return false
	}
	rv.Elem().Set(tmp.Elem())
	return true
}

// Delete removes the value stored under namespace and key.
func (a *Adapter) Delete(ctx context.Context, namespace, key string) bool {
	if !a.Available() {
		return false
	}
	k := a.Key(namespace, key)
	if err := a.backend.Del(ctx, k); err != nil {
		a.logger.Warn("cache delete failed", "key", k, "error", err.Error())
		return false
	}
	return true
}

// Close releases the backend. It is safe on an adapter without a backend.
func (a *Adapter) Close() error {
	if a == nil || a.backend == nil {
		return nil
	}
	return a.backend.Close()
}
