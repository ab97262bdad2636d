// Package store holds the shared state of a swarm: domain records produced by
// workers and the session ledger.
//
// Records live in process memory under a single lock and are mirrored
// best-effort into a durable cache. Reads are cache-aside in the reverse
// direction: the cache is consulted first and memory is the fallback. Writes
// reach memory before the cache, so a reader in another process may briefly
// miss a record that a local reader already sees.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/core"
	"github.com/hupe1980/salesswarm/logging"
)

// Options configures a Store.
type Options struct {
	// Cache is the durable tier. Defaults to an unavailable adapter, which
	// makes the store memory-only.
	Cache core.DurableCache

	// TTL applies to every cached record except company intel. Zero uses the
	// cache's default.
	TTL time.Duration

	// CompanyIntelTTL applies to company intel records.
	CompanyIntelTTL time.Duration

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Now is the clock used for stored_at stamps and session timestamps.
	Now func() time.Time
}

// Store is safe for concurrent use. Every in-memory mutation, including the
// session ledger, goes through one mutex.
type Store struct {
	mu       sync.Mutex
	records  map[core.EntityKind]map[string]core.Record
	sessions map[string]*core.Session
	rev      uint64

	mirrorMu sync.Mutex
	mirrored map[string]uint64
	pending  map[string]pendingSnapshot
	draining map[string]bool
	drainers int
	flushed  chan struct{} // closed while drainers == 0

	cache    core.DurableCache
	ttl      time.Duration
	intelTTL time.Duration
	logger   logging.Logger
	now      func() time.Time
}

// New creates an empty store.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		CompanyIntelTTL: cache.CompanyIntelTTL,
		Logger:          logging.NoOpLogger{},
		Now:             time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Cache == nil {
		opts.Cache = cache.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		records:  make(map[core.EntityKind]map[string]core.Record),
		sessions: make(map[string]*core.Session),
		mirrored: make(map[string]uint64),
		pending:  make(map[string]pendingSnapshot),
		draining: make(map[string]bool),
		flushed:  closedChan(),
		cache:    opts.Cache,
		ttl:      opts.TTL,
		intelTTL: opts.CompanyIntelTTL,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

type pendingSnapshot struct {
	snap *core.Session
	rev  uint64
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// location ties an in-memory slot to its cache key.
type location struct {
	kind      core.EntityKind
	memKey    string
	namespace string
	cacheKey  string
	ttl       time.Duration
}

func (s *Store) put(ctx context.Context, loc location, data core.Record) {
	stamped := data.Stamped(s.now())

	s.mu.Lock()
	m, ok := s.records[loc.kind]
	if !ok {
		m = make(map[string]core.Record)
		s.records[loc.kind] = m
	}
	m[loc.memKey] = stamped
	s.mu.Unlock()

	// memory is already updated; a failed cache write is only logged
	cached := s.cache.Put(ctx, loc.namespace, loc.cacheKey, stamped, loc.ttl)
	s.logger.Debug("record stored",
		"kind", string(loc.kind),
		"key", loc.memKey,
		"cached", cached,
	)
}

// get reads the cache first. A cached record carrying the same stored_at
// stamp as the local copy is the local write coming back, so the local copy
// is returned instead; it keeps the Go types of the stored values, which a
// JSON round trip turns into float64, string and generic maps.
func (s *Store) get(ctx context.Context, loc location) (core.Record, bool) {
	var cached core.Record
	hit := s.cache.Get(ctx, loc.namespace, loc.cacheKey, &cached) && cached != nil

	s.mu.Lock()
	defer s.mu.Unlock()
	local, ok := s.records[loc.kind][loc.memKey]
	switch {
	case hit && ok && sameStamp(cached, local):
		return local.Clone(), true
	case hit:
		return cached, true
	case ok:
		return local.Clone(), true
	}
	return nil, false
}

func sameStamp(a, b core.Record) bool {
	sa, ok := a[core.StoredAtKey].(string)
	if !ok {
		return false
	}
	sb, ok := b[core.StoredAtKey].(string)
	return ok && sa == sb
}

func (s *Store) campaignLoc(id string) location {
	return location{kind: core.EntityCampaign, memKey: id, namespace: cache.NamespaceCampaign, cacheKey: id, ttl: s.ttl}
}

func (s *Store) leadLoc(id string) location {
	return location{kind: core.EntityLead, memKey: id, namespace: cache.NamespaceEnrichment, cacheKey: id, ttl: s.ttl}
}

func (s *Store) emailLoc(campaignID, leadID string) location {
	return location{
		kind:      core.EntityEmailSequence,
		memKey:    campaignID + ":" + leadID,
		namespace: cache.EmailNamespace(campaignID),
		cacheKey:  leadID,
		ttl:       s.ttl,
	}
}

func (s *Store) qualificationLoc(id string) location {
	return location{kind: core.EntityQualification, memKey: id, namespace: cache.NamespaceQualification, cacheKey: id, ttl: s.ttl}
}

func (s *Store) companyIntelLoc(companyURL string) location {
	return location{
		kind:      core.EntityCompanyIntel,
		memKey:    companyURL,
		namespace: cache.NamespaceCompanyIntel,
		cacheKey:  cache.HashKey(companyURL),
		ttl:       s.intelTTL,
	}
}

// StoreCampaign stores campaign data, replacing any previous record.
func (s *Store) StoreCampaign(ctx context.Context, campaignID string, data core.Record) {
	s.put(ctx, s.campaignLoc(campaignID), data)
}

// Campaign returns the campaign record.
func (s *Store) Campaign(ctx context.Context, campaignID string) (core.Record, bool) {
	return s.get(ctx, s.campaignLoc(campaignID))
}

// StoreLead stores an enriched lead profile.
func (s *Store) StoreLead(ctx context.Context, leadID string, data core.Record) {
	s.put(ctx, s.leadLoc(leadID), data)
}

// Lead returns the lead record.
func (s *Store) Lead(ctx context.Context, leadID string) (core.Record, bool) {
	return s.get(ctx, s.leadLoc(leadID))
}

// StoreEmailSequence stores the email sequence generated for a lead within a
// campaign.
func (s *Store) StoreEmailSequence(ctx context.Context, campaignID, leadID string, data core.Record) {
	s.put(ctx, s.emailLoc(campaignID, leadID), data)
}

// EmailSequence returns the sequence for a campaign and lead.
func (s *Store) EmailSequence(ctx context.Context, campaignID, leadID string) (core.Record, bool) {
	return s.get(ctx, s.emailLoc(campaignID, leadID))
}

// StoreQualification stores a qualification result.
func (s *Store) StoreQualification(ctx context.Context, id string, data core.Record) {
	s.put(ctx, s.qualificationLoc(id), data)
}

// Qualification returns a qualification result.
func (s *Store) Qualification(ctx context.Context, id string) (core.Record, bool) {
	return s.get(ctx, s.qualificationLoc(id))
}

// StoreCompanyIntel stores intelligence scraped from companyURL. It is cached
// under a hash of the URL with the longer company intel TTL.
func (s *Store) StoreCompanyIntel(ctx context.Context, companyURL string, data core.Record) {
	s.put(ctx, s.companyIntelLoc(companyURL), data)
}

// CompanyIntel returns the intelligence for companyURL.
func (s *Store) CompanyIntel(ctx context.Context, companyURL string) (core.Record, bool) {
	return s.get(ctx, s.companyIntelLoc(companyURL))
}
