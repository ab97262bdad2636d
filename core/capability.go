package core

import (
	"context"
	"slices"
)

// WorkerCapability declares what a worker is and which event kinds it reacts
// to. Emits is documentation only and never enforced.
type WorkerCapability struct {
	WorkerID    string      `json:"worker_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Subscribes  []EventKind `json:"subscribes"`
	Emits       []EventKind `json:"emits,omitempty"`
}

// Clone returns a copy whose slices can be mutated independently.
func (c WorkerCapability) Clone() WorkerCapability {
	c.Subscribes = slices.Clone(c.Subscribes)
	c.Emits = slices.Clone(c.Emits)
	return c
}

// SubscribesTo reports whether kind is among the subscribed kinds.
func (c WorkerCapability) SubscribesTo(kind EventKind) bool {
	return slices.Contains(c.Subscribes, kind)
}

// Handler is invoked once per delivered event. workerID is the id the handler
// was registered under. Returned errors are logged by the dispatcher and
// never reach the publisher.
type Handler func(ctx context.Context, workerID string, ev Event) error

// HandlerFor adapts a handler for a single payload variant. Events carrying a
// different payload are ignored.
func HandlerFor[P Payload](fn func(ctx context.Context, workerID string, ev Event, payload P) error) Handler {
	return func(ctx context.Context, workerID string, ev Event) error {
		p, ok := ev.Payload.(P)
		if !ok {
			return nil
		}
		return fn(ctx, workerID, ev, p)
	}
}

// Mux routes events to per-kind handlers. Kinds without a route are ignored.
func Mux(routes map[EventKind]Handler) Handler {
	table := make(map[EventKind]Handler, len(routes))
	for k, h := range routes {
		table[k] = h
	}
	return func(ctx context.Context, workerID string, ev Event) error {
		h, ok := table[ev.Kind]
		if !ok || h == nil {
			return nil
		}
		return h(ctx, workerID, ev)
	}
}
