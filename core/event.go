package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// EventKind identifies what happened. The set is closed: every kind has
// exactly one Payload variant.
type EventKind string

const (
	// Campaign events
	KindCampaignCreated  EventKind = "campaign_created"
	KindCampaignUpdated  EventKind = "campaign_updated"
	KindCampaignLaunched EventKind = "campaign_launched"

	// Lead events
	KindLeadEnrichmentRequested EventKind = "lead_enrichment_requested"
	KindLeadEnriched            EventKind = "lead_enriched"
	KindLeadQualified           EventKind = "lead_qualified"
	KindLeadAddedToCampaign     EventKind = "lead_added_to_campaign"

	// Lookalike events
	KindLookalikeRequested EventKind = "lookalike_requested"
	KindLookalikeFound     EventKind = "lookalike_found"
	KindLookalikeApproved  EventKind = "lookalike_approved"
	KindLookalikeRejected  EventKind = "lookalike_rejected"

	// Email events
	KindEmailGenerationRequested EventKind = "email_generation_requested"
	KindEmailGenerated           EventKind = "email_generated"
	KindEmailSent                EventKind = "email_sent"
	KindEmailOpened              EventKind = "email_opened"
	KindEmailResponded           EventKind = "email_responded"

	// Follow-up events
	KindFollowupScheduled EventKind = "followup_scheduled"
	KindFollowupDue       EventKind = "followup_due"
	KindFollowupSent      EventKind = "followup_sent"

	// Company intelligence events
	KindCompanyIntelRequested EventKind = "company_intel_requested"
	KindCompanyIntelScraped   EventKind = "company_intel_scraped"

	// CRM events
	KindCRMSyncRequested EventKind = "crm_sync_requested"
	KindCRMSynced        EventKind = "crm_synced"

	// Session events
	KindSessionStarted EventKind = "session_started"
	KindSessionEnded   EventKind = "session_ended"
)

var allEventKinds = []EventKind{
	KindCampaignCreated, KindCampaignUpdated, KindCampaignLaunched,
	KindLeadEnrichmentRequested, KindLeadEnriched, KindLeadQualified, KindLeadAddedToCampaign,
	KindLookalikeRequested, KindLookalikeFound, KindLookalikeApproved, KindLookalikeRejected,
	KindEmailGenerationRequested, KindEmailGenerated, KindEmailSent, KindEmailOpened, KindEmailResponded,
	KindFollowupScheduled, KindFollowupDue, KindFollowupSent,
	KindCompanyIntelRequested, KindCompanyIntelScraped,
	KindCRMSyncRequested, KindCRMSynced,
	KindSessionStarted, KindSessionEnded,
}

var knownEventKinds = func() map[EventKind]struct{} {
	m := make(map[EventKind]struct{}, len(allEventKinds))
	for _, k := range allEventKinds {
		m[k] = struct{}{}
	}
	return m
}()

// AllEventKinds returns every member of the enumeration in declaration order.
func AllEventKinds() []EventKind {
	out := make([]EventKind, len(allEventKinds))
	copy(out, allEventKinds)
	return out
}

// Valid reports whether k is a member of the enumeration.
func (k EventKind) Valid() bool {
	_, ok := knownEventKinds[k]
	return ok
}

// String implements fmt.Stringer.
func (k EventKind) String() string { return string(k) }

// Event is the unit of communication between workers. After NewEvent returns
// it must be treated as immutable; it is never persisted beyond the summary
// appended to its session log.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"` // publishing worker id
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEvent creates an event whose kind is derived from the payload variant,
// so kind and payload can never disagree.
func NewEvent(sessionID, source string, payload Payload) Event {
	e := Event{
		ID:        NewID(),
		SessionID: sessionID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if payload != nil {
		e.Kind = payload.Kind()
	}
	return e
}

// Validate checks the structural invariants of an event.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: missing payload for %s", ErrInvalidEvent, e.Kind)
	}
	if e.Payload.Kind() != e.Kind {
		return fmt.Errorf("%w: payload %T does not match kind %s", ErrInvalidEvent, e.Payload, e.Kind)
	}
	return nil
}

// PayloadKeys returns the top-level field names present in the payload's
// JSON form, in field order. Values are never included.
func (e Event) PayloadKeys() []string {
	if e.Payload == nil {
		return []string{}
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return []string{}
	}
	keys := []string{}
	gjson.ParseBytes(raw).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// EventSummary is the truncated form of an event kept in a session log.
type EventSummary struct {
	EventID   string    `json:"event_id"`
	Kind      EventKind `json:"kind"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	DataKeys  []string  `json:"data_keys"`
}

// Summarize builds the session log entry for an event.
func Summarize(e Event) EventSummary {
	return EventSummary{
		EventID:   e.ID,
		Kind:      e.Kind,
		Source:    e.Source,
		Timestamp: e.Timestamp,
		DataKeys:  e.PayloadKeys(),
	}
}

// NewID generates a new unique identifier for events.
func NewID() string { return uuid.NewString() }
