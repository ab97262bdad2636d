package testutil

import (
	"time"

	"github.com/hupe1980/salesswarm/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Session("s1").Source("manager").Payload(core.EmailSent{LeadID: "l1"}).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	sessionID string
	source    string
	id        string
	at        time.Time
	payload   core.Payload
}

// NewEventBuilder creates a builder with default source "test" and a
// SessionStarted payload.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{source: "test", payload: core.SessionStarted{Context: "test"}}
}

// Session sets the owning session id (chainable).
func (b *EventBuilder) Session(id string) *EventBuilder { b.sessionID = id; return b }

// Source sets the publishing worker id (chainable).
func (b *EventBuilder) Source(s string) *EventBuilder { b.source = s; return b }

// ID overrides the generated event id (chainable). Use mainly where determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// At overrides the event timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.at = t; return b }

// Payload sets the payload; the kind follows from it (chainable).
func (b *EventBuilder) Payload(p core.Payload) *EventBuilder { b.payload = p; return b }

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.sessionID, b.source, b.payload)
	if b.id != "" {
		ev.ID = b.id
	}
	if !b.at.IsZero() {
		ev.Timestamp = b.at.UTC()
	}
	return ev
}
