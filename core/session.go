package core

import (
	"context"
	"time"
)

// SessionStatus is the lifecycle state of a session. Transitions only go from
// active to ended.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Session groups related events and records under one identifier.
//
// Contract:
//   - Events is append-only and ordered by publish order
//   - Metadata updates merge and refresh LastUpdated
//   - A session is never removed, only ended
//
// Session values carry no lock of their own; the owning store guards them.
// Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID          string         `json:"session_id"`
	Context     string         `json:"context"`
	Status      SessionStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	Events      []EventSummary `json:"events"`
}

// NewSession creates an active session with the given id and context tag.
func NewSession(id, sessionContext string, metadata map[string]any) *Session {
	now := time.Now().UTC()
	md := map[string]any(Record(metadata).Clone())
	if md == nil {
		md = map[string]any{}
	}
	return &Session{
		ID:          id,
		Context:     sessionContext,
		Status:      SessionStatusActive,
		CreatedAt:   now,
		LastUpdated: now,
		Metadata:    md,
		Events:      []EventSummary{},
	}
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool { return s.Status == SessionStatusActive }

// MergeMetadata merges patch into Metadata and refreshes LastUpdated.
func (s *Session) MergeMetadata(patch map[string]any) {
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	for k, v := range patch {
		s.Metadata[k] = cloneValue(v)
	}
	s.LastUpdated = time.Now().UTC()
}

// AddEvent appends a summary to the log and refreshes LastUpdated.
func (s *Session) AddEvent(summary EventSummary) {
	s.Events = append(s.Events, summary)
	s.LastUpdated = time.Now().UTC()
}

// End marks the session ended. Ending twice keeps the first EndedAt.
func (s *Session) End() {
	if s.Status == SessionStatusEnded {
		return
	}
	now := time.Now().UTC()
	s.Status = SessionStatusEnded
	s.EndedAt = &now
	s.LastUpdated = now
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Metadata = map[string]any(Record(s.Metadata).Clone())
	if clone.Metadata == nil {
		clone.Metadata = map[string]any{}
	}
	clone.Events = make([]EventSummary, len(s.Events))
	for i, ev := range s.Events {
		ev.DataKeys = append([]string(nil), ev.DataKeys...)
		clone.Events[i] = ev
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		clone.EndedAt = &t
	}
	return &clone
}

// SessionLedger records event summaries against known sessions. AppendEvent
// reports false when the session is unknown; it never creates one.
type SessionLedger interface {
	AppendEvent(ctx context.Context, sessionID string, summary EventSummary) bool
}
