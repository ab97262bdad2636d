package core

// Payload is the typed body of an Event. Concrete payload types implement the
// unexported isPayload marker, which keeps the set closed: one variant per
// EventKind.
type Payload interface {
	Kind() EventKind
	isPayload()
}

// CampaignCreated reports the outcome of processing a new campaign.
type CampaignCreated struct {
	CampaignID      string `json:"campaign_id"`
	CampaignName    string `json:"campaign_name,omitempty"`
	LeadsProcessed  int    `json:"leads_processed"`
	EmailsGenerated int    `json:"emails_generated"`
}

// CampaignUpdated carries the fields changed on a campaign.
type CampaignUpdated struct {
	CampaignID string         `json:"campaign_id"`
	Changes    map[string]any `json:"changes,omitempty"`
}

// CampaignLaunched signals that a campaign's emails may be scheduled.
type CampaignLaunched struct {
	CampaignID string   `json:"campaign_id"`
	LeadIDs    []string `json:"lead_ids,omitempty"`
	SendDate   string   `json:"send_date,omitempty"`
	SendTime   string   `json:"send_time,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
}

// LeadEnrichmentRequested asks for profiles to be enriched.
type LeadEnrichmentRequested struct {
	LinkedInURLs []string `json:"linkedin_urls"`
	CampaignID   string   `json:"campaign_id,omitempty"`
}

// LeadEnriched carries one enriched lead profile.
type LeadEnriched struct {
	Lead       Record `json:"lead"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// LeadQualified carries a qualification verdict.
type LeadQualified struct {
	LeadID     string `json:"lead_id"`
	Score      int    `json:"score"`
	Qualified  bool   `json:"qualified"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// LeadAddedToCampaign links a lead to a campaign.
type LeadAddedToCampaign struct {
	LeadID     string `json:"lead_id"`
	CampaignID string `json:"campaign_id"`
}

// LookalikeRequested asks for leads similar to the sample profiles.
type LookalikeRequested struct {
	ProfileURLs []string `json:"profile_urls"`
	MaxLeads    int      `json:"max_leads,omitempty"`
}

// LookalikeFound carries the leads matched against an ideal customer profile.
type LookalikeFound struct {
	ICPSummary    string         `json:"icp_summary"`
	MatchCriteria map[string]any `json:"match_criteria,omitempty"`
	LeadsCount    int            `json:"leads_count"`
	Leads         []Record       `json:"leads,omitempty"`
}

// LookalikeApproved accepts lookalike leads.
type LookalikeApproved struct {
	LeadIDs []string `json:"lead_ids"`
}

// LookalikeRejected rejects lookalike leads.
type LookalikeRejected struct {
	LeadIDs []string `json:"lead_ids"`
	Reason  string   `json:"reason,omitempty"`
}

// EmailGenerationRequested asks for an email sequence for one lead.
type EmailGenerationRequested struct {
	CampaignID      string `json:"campaign_id,omitempty"`
	CampaignGoal    string `json:"campaign_goal"`
	Lead            Record `json:"lead"`
	CompanyInsights string `json:"company_insights,omitempty"`
	NumFollowups    int    `json:"num_followups,omitempty"`
}

// EmailSchedule is the optional send window attached to generated emails.
type EmailSchedule struct {
	SendDate string `json:"send_date,omitempty"`
	SendTime string `json:"send_time,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// EmailGenerated carries a generated email sequence.
type EmailGenerated struct {
	LeadID     string         `json:"lead_id"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Sequence   Record         `json:"sequence"`
	EmailCount int            `json:"email_count"`
	Schedule   *EmailSchedule `json:"schedule,omitempty"`
}

// EmailSent reports a sent step of a sequence.
type EmailSent struct {
	LeadID     string `json:"lead_id"`
	CampaignID string `json:"campaign_id,omitempty"`
	Step       int    `json:"step"`
}

// EmailOpened reports an opened email.
type EmailOpened struct {
	LeadID     string `json:"lead_id"`
	CampaignID string `json:"campaign_id,omitempty"`
	Step       int    `json:"step"`
}

// EmailResponded reports a reply from a lead.
type EmailResponded struct {
	LeadID     string `json:"lead_id"`
	CampaignID string `json:"campaign_id,omitempty"`
	Step       int    `json:"step"`
}

// FollowupScheduled reports follow-ups planned for a lead.
type FollowupScheduled struct {
	LeadID         string `json:"lead_id"`
	CampaignID     string `json:"campaign_id,omitempty"`
	FollowupsCount int    `json:"followups_count"`
	NextFollowup   string `json:"next_followup,omitempty"`
	Timezone       string `json:"timezone_used,omitempty"`
}

// FollowupDue signals that a follow-up step should be sent now.
type FollowupDue struct {
	LeadID    string `json:"lead_id"`
	Step      int    `json:"step"`
	EmailData Record `json:"email_data,omitempty"`
}

// FollowupSent reports a sent follow-up.
type FollowupSent struct {
	LeadID string `json:"lead_id"`
	Step   int    `json:"step"`
}

// CompanyIntelRequested asks for intelligence on a company website.
type CompanyIntelRequested struct {
	CompanyURL  string `json:"company_url"`
	CompanyName string `json:"company_name,omitempty"`
}

// CompanyIntelScraped carries the extracted company intelligence.
type CompanyIntelScraped struct {
	CompanyURL   string `json:"company_url"`
	Intelligence Record `json:"intelligence"`
}

// CRMSyncRequested asks for leads to be pushed to a CRM.
type CRMSyncRequested struct {
	LeadIDs []string `json:"lead_ids"`
	Target  string   `json:"target,omitempty"`
}

// CRMSynced reports a completed CRM sync.
type CRMSynced struct {
	LeadIDs []string `json:"lead_ids"`
	Target  string   `json:"target,omitempty"`
	Synced  int      `json:"synced"`
}

// SessionStarted marks the beginning of a session.
type SessionStarted struct {
	Context string `json:"context"`
}

// SessionEnded marks the end of a session.
type SessionEnded struct {
	Reason string `json:"reason,omitempty"`
}

func (CampaignCreated) Kind() EventKind          { return KindCampaignCreated }
func (CampaignUpdated) Kind() EventKind          { return KindCampaignUpdated }
func (CampaignLaunched) Kind() EventKind         { return KindCampaignLaunched }
func (LeadEnrichmentRequested) Kind() EventKind  { return KindLeadEnrichmentRequested }
func (LeadEnriched) Kind() EventKind             { return KindLeadEnriched }
func (LeadQualified) Kind() EventKind            { return KindLeadQualified }
func (LeadAddedToCampaign) Kind() EventKind      { return KindLeadAddedToCampaign }
func (LookalikeRequested) Kind() EventKind       { return KindLookalikeRequested }
func (LookalikeFound) Kind() EventKind           { return KindLookalikeFound }
func (LookalikeApproved) Kind() EventKind        { return KindLookalikeApproved }
func (LookalikeRejected) Kind() EventKind        { return KindLookalikeRejected }
func (EmailGenerationRequested) Kind() EventKind { return KindEmailGenerationRequested }
func (EmailGenerated) Kind() EventKind           { return KindEmailGenerated }
func (EmailSent) Kind() EventKind                { return KindEmailSent }
func (EmailOpened) Kind() EventKind              { return KindEmailOpened }
func (EmailResponded) Kind() EventKind           { return KindEmailResponded }
func (FollowupScheduled) Kind() EventKind        { return KindFollowupScheduled }
func (FollowupDue) Kind() EventKind              { return KindFollowupDue }
func (FollowupSent) Kind() EventKind             { return KindFollowupSent }
func (CompanyIntelRequested) Kind() EventKind    { return KindCompanyIntelRequested }
func (CompanyIntelScraped) Kind() EventKind      { return KindCompanyIntelScraped }
func (CRMSyncRequested) Kind() EventKind         { return KindCRMSyncRequested }
func (CRMSynced) Kind() EventKind                { return KindCRMSynced }
func (SessionStarted) Kind() EventKind           { return KindSessionStarted }
func (SessionEnded) Kind() EventKind             { return KindSessionEnded }

func (CampaignCreated) isPayload()          {}
func (CampaignUpdated) isPayload()          {}
func (CampaignLaunched) isPayload()         {}
func (LeadEnrichmentRequested) isPayload()  {}
func (LeadEnriched) isPayload()             {}
func (LeadQualified) isPayload()            {}
func (LeadAddedToCampaign) isPayload()      {}
func (LookalikeRequested) isPayload()       {}
func (LookalikeFound) isPayload()           {}
func (LookalikeApproved) isPayload()        {}
func (LookalikeRejected) isPayload()        {}
func (EmailGenerationRequested) isPayload() {}
func (EmailGenerated) isPayload()           {}
func (EmailSent) isPayload()                {}
func (EmailOpened) isPayload()              {}
func (EmailResponded) isPayload()           {}
func (FollowupScheduled) isPayload()        {}
func (FollowupDue) isPayload()              {}
func (FollowupSent) isPayload()             {}
func (CompanyIntelRequested) isPayload()    {}
func (CompanyIntelScraped) isPayload()      {}
func (CRMSyncRequested) isPayload()         {}
func (CRMSynced) isPayload()                {}
func (SessionStarted) isPayload()           {}
func (SessionEnded) isPayload()             {}
