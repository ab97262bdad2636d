// Package workers declares the standard sales swarm workers and provides
// stub handlers for them.
//
// The stubs do no outbound work. Each one records what it was asked for in
// the state store and publishes the follow-on event its capability declares,
// which is enough to exercise a full fan-out chain without external systems.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/core"
)

// Worker ids.
const (
	CompanyIntel         = "company_intel"
	EmailGenerator       = "email_generator"
	EmailScheduler       = "email_scheduler"
	FollowupOrchestrator = "followup_orchestrator"
	LeadEnrichment       = "lead_enrichment"
	LookalikeFinder      = "lookalike_finder"

	// ManagerID is the source used for events published on behalf of an
	// operator rather than a worker.
	ManagerID = "sales_swarm_manager"
)

// DefaultCampaign keys email sequences that arrive without a campaign.
const DefaultCampaign = "default"

// Store is the subset of the state store the stub handlers write to.
type Store interface {
	StoreLead(ctx context.Context, leadID string, data core.Record)
	StoreEmailSequence(ctx context.Context, campaignID, leadID string, data core.Record)
	StoreCompanyIntel(ctx context.Context, companyURL string, data core.Record)
}

// Publisher publishes follow-on events.
type Publisher interface {
	Publish(ctx context.Context, ev core.Event) error
}

// Catalog returns the capabilities of the six standard workers, sorted by id.
func Catalog() []core.WorkerCapability {
	return []core.WorkerCapability{
		{
			WorkerID:    CompanyIntel,
			Name:        "Company Intelligence",
			Description: "Scrapes and analyzes company websites for sales insights",
			Subscribes:  []core.EventKind{core.KindCompanyIntelRequested},
			Emits:       []core.EventKind{core.KindCompanyIntelScraped},
		},
		{
			WorkerID:    EmailGenerator,
			Name:        "Email Generator",
			Description: "Generates personalized email sequences for campaigns",
			Subscribes:  []core.EventKind{core.KindEmailGenerationRequested, core.KindLeadEnriched},
			Emits:       []core.EventKind{core.KindEmailGenerated},
		},
		{
			WorkerID:    EmailScheduler,
			Name:        "Email Scheduler",
			Description: "Schedules emails based on date, time, and timezone",
			Subscribes:  []core.EventKind{core.KindEmailGenerated, core.KindCampaignLaunched},
			Emits:       []core.EventKind{core.KindFollowupScheduled},
		},
		{
			WorkerID:    FollowupOrchestrator,
			Name:        "Follow-up Orchestrator",
			Description: "Manages email sequence timing and follow-up scheduling",
			Subscribes: []core.EventKind{
				core.KindEmailGenerated,
				core.KindEmailSent,
				core.KindEmailOpened,
				core.KindEmailResponded,
			},
			Emits: []core.EventKind{core.KindFollowupScheduled, core.KindFollowupDue},
		},
		{
			WorkerID:    LeadEnrichment,
			Name:        "Lead Enrichment",
			Description: "Enriches lead data from LinkedIn profiles",
			Subscribes:  []core.EventKind{core.KindLeadEnrichmentRequested},
			Emits:       []core.EventKind{core.KindLeadEnriched},
		},
		{
			WorkerID:    LookalikeFinder,
			Name:        "Lookalike Finder",
			Description: "Finds similar leads based on ideal customer profiles",
			Subscribes:  []core.EventKind{core.KindLookalikeRequested},
			Emits:       []core.EventKind{core.KindLookalikeFound},
		},
	}
}

// Options configures the stub handlers.
type Options struct {
	// FollowupInterval spaces scheduled follow-ups. Defaults to three days.
	FollowupInterval time.Duration
	// Timezone is reported on scheduled follow-ups. Defaults to UTC.
	Timezone string
	Now      func() time.Time
}

// Stubs builds stub handlers keyed by worker id.
type Stubs struct {
	store Store
	pub   Publisher
	opts  Options
}

// NewStubs returns stub handlers writing to store and publishing to pub.
func NewStubs(store Store, pub Publisher, optFns ...func(o *Options)) *Stubs {
	opts := Options{
		FollowupInterval: 72 * time.Hour,
		Timezone:         "UTC",
		Now:              time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Stubs{store: store, pub: pub, opts: opts}
}

// Handlers returns one handler per catalog worker.
func (s *Stubs) Handlers() map[string]core.Handler {
	return map[string]core.Handler{
		CompanyIntel: core.HandlerFor(s.companyIntel),
		EmailGenerator: core.Mux(map[core.EventKind]core.Handler{
			core.KindEmailGenerationRequested: core.HandlerFor(s.generateRequested),
			core.KindLeadEnriched:             core.HandlerFor(s.generateForLead),
		}),
		EmailScheduler: core.Mux(map[core.EventKind]core.Handler{
			core.KindEmailGenerated:   core.HandlerFor(s.scheduleGenerated),
			core.KindCampaignLaunched: core.HandlerFor(s.scheduleCampaign),
		}),
		FollowupOrchestrator: core.Mux(map[core.EventKind]core.Handler{
			core.KindEmailGenerated: core.HandlerFor(s.planFollowups),
			core.KindEmailSent:      core.HandlerFor(s.nextFollowup),
		}),
		LeadEnrichment:  core.HandlerFor(s.enrich),
		LookalikeFinder: core.HandlerFor(s.findLookalikes),
	}
}

func (s *Stubs) emit(ctx context.Context, ev core.Event, workerID string, p core.Payload) error {
	if err := s.pub.Publish(ctx, core.NewEvent(ev.SessionID, workerID, p)); err != nil {
		return fmt.Errorf("publish %s: %w", p.Kind(), err)
	}
	return nil
}

func (s *Stubs) stamp() string { return s.opts.Now().UTC().Format(time.RFC3339) }

func (s *Stubs) companyIntel(ctx context.Context, workerID string, ev core.Event, p core.CompanyIntelRequested) error {
	intel := core.Record{
		"company_url":  p.CompanyURL,
		"company_name": p.CompanyName,
		"analyzed_at":  s.stamp(),
	}
	s.store.StoreCompanyIntel(ctx, p.CompanyURL, intel)
	return s.emit(ctx, ev, workerID, core.CompanyIntelScraped{CompanyURL: p.CompanyURL, Intelligence: intel})
}

// LeadID derives a stable lead id from a profile URL.
func LeadID(profileURL string) string { return "lead_" + cache.HashKey(profileURL) }

func (s *Stubs) enrich(ctx context.Context, workerID string, ev core.Event, p core.LeadEnrichmentRequested) error {
	for _, u := range p.LinkedInURLs {
		lead := core.Record{
			"id":           LeadID(u),
			"linkedin_url": u,
			"enriched_at":  s.stamp(),
		}
		s.store.StoreLead(ctx, LeadID(u), lead)
		if err := s.emit(ctx, ev, workerID, core.LeadEnriched{Lead: lead, CampaignID: p.CampaignID}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stubs) generate(ctx context.Context, workerID string, ev core.Event, campaignID, leadID string, followups int) error {
	if leadID == "" {
		return fmt.Errorf("lead without id: %w", core.ErrInvalidEvent)
	}
	if campaignID == "" {
		campaignID = DefaultCampaign
	}
	emails := make([]any, 0, followups+1)
	for step := 0; step <= followups; step++ {
		emails = append(emails, map[string]any{"step": float64(step)})
	}
	seq := core.Record{"emails": emails}
	s.store.StoreEmailSequence(ctx, campaignID, leadID, seq)
	return s.emit(ctx, ev, workerID, core.EmailGenerated{
		LeadID:     leadID,
		CampaignID: campaignID,
		Sequence:   seq,
		EmailCount: len(emails),
	})
}

func (s *Stubs) generateRequested(ctx context.Context, workerID string, ev core.Event, p core.EmailGenerationRequested) error {
	leadID, _ := p.Lead["id"].(string)
	return s.generate(ctx, workerID, ev, p.CampaignID, leadID, p.NumFollowups)
}

func (s *Stubs) generateForLead(ctx context.Context, workerID string, ev core.Event, p core.LeadEnriched) error {
	leadID, _ := p.Lead["id"].(string)
	return s.generate(ctx, workerID, ev, p.CampaignID, leadID, 2)
}

func (s *Stubs) scheduled(leadID, campaignID string, count int, tz string) core.FollowupScheduled {
	if tz == "" {
		tz = s.opts.Timezone
	}
	return core.FollowupScheduled{
		LeadID:         leadID,
		CampaignID:     campaignID,
		FollowupsCount: count,
		NextFollowup:   s.opts.Now().Add(s.opts.FollowupInterval).UTC().Format(time.RFC3339),
		Timezone:       tz,
	}
}

func (s *Stubs) scheduleGenerated(ctx context.Context, workerID string, ev core.Event, p core.EmailGenerated) error {
	tz := ""
	if p.Schedule != nil {
		tz = p.Schedule.Timezone
	}
	return s.emit(ctx, ev, workerID, s.scheduled(p.LeadID, p.CampaignID, p.EmailCount, tz))
}

func (s *Stubs) scheduleCampaign(ctx context.Context, workerID string, ev core.Event, p core.CampaignLaunched) error {
	for _, leadID := range p.LeadIDs {
		if err := s.emit(ctx, ev, workerID, s.scheduled(leadID, p.CampaignID, 1, p.Timezone)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stubs) planFollowups(ctx context.Context, workerID string, ev core.Event, p core.EmailGenerated) error {
	if p.EmailCount <= 1 {
		return nil
	}
	return s.emit(ctx, ev, workerID, s.scheduled(p.LeadID, p.CampaignID, p.EmailCount-1, ""))
}

func (s *Stubs) nextFollowup(ctx context.Context, workerID string, ev core.Event, p core.EmailSent) error {
	return s.emit(ctx, ev, workerID, core.FollowupDue{LeadID: p.LeadID, Step: p.Step + 1})
}

func (s *Stubs) findLookalikes(ctx context.Context, workerID string, ev core.Event, p core.LookalikeRequested) error {
	leads := make([]core.Record, 0, len(p.ProfileURLs))
	for _, u := range p.ProfileURLs {
		if p.MaxLeads > 0 && len(leads) == p.MaxLeads {
			break
		}
		leads = append(leads, core.Record{"id": LeadID(u), "similar_to": u})
	}
	return s.emit(ctx, ev, workerID, core.LookalikeFound{
		ICPSummary: fmt.Sprintf("derived from %d sample profiles", len(p.ProfileURLs)),
		LeadsCount: len(leads),
		Leads:      leads,
	})
}
