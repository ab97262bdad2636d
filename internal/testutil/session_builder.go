package testutil

import (
	"github.com/hupe1980/salesswarm/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Meta("campaign_id", "c1").Events(ev1, ev2).Ended().Build()
type SessionBuilder struct {
	id      string
	context string
	meta    map[string]any
	events  []core.Event
	ended   bool
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, context: "test", meta: map[string]any{}}
}

// Context sets the session context tag (chainable).
func (b *SessionBuilder) Context(c string) *SessionBuilder { b.context = c; return b }

// Meta sets or overwrites a metadata key (chainable).
func (b *SessionBuilder) Meta(key string, val any) *SessionBuilder {
	b.meta[key] = val
	return b
}

// Events appends events to the session log as summaries (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Ended marks the built session as ended (chainable).
func (b *SessionBuilder) Ended() *SessionBuilder { b.ended = true; return b }

// Build returns a *core.Session with the configured metadata and log.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id, b.context, b.meta)
	for _, ev := range b.events {
		s.AddEvent(core.Summarize(ev))
	}
	if b.ended {
		s.End()
	}
	return s
}
