// Package registry keeps the process-wide table of workers, their declared
// capabilities, the event kinds they subscribe to and the handlers bound to
// them.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/salesswarm/core"
	"github.com/hupe1980/salesswarm/logging"
)

// Options configures a Registry.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Delivery pairs a subscribed worker with its bound handler.
type Delivery struct {
	WorkerID string
	Handler  core.Handler
}

// Registry is safe for concurrent use. All read methods return snapshots.
//
// Registering a capability for an existing worker id fully replaces the
// previous declaration: the worker is removed from every kind it no longer
// subscribes to. Handlers are bound separately and survive re-registration.
type Registry struct {
	mu            sync.RWMutex
	capabilities  map[string]core.WorkerCapability
	handlers      map[string]core.Handler
	subscriptions map[core.EventKind]map[string]struct{}
	logger        logging.Logger
}

// New returns an empty registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Registry{
		capabilities:  make(map[string]core.WorkerCapability),
		handlers:      make(map[string]core.Handler),
		subscriptions: make(map[core.EventKind]map[string]struct{}),
		logger:        opts.Logger,
	}
}

// Register stores the capability, replacing any previous one for the same
// worker id.
func (r *Registry) Register(capability core.WorkerCapability) error {
	id := strings.TrimSpace(capability.WorkerID)
	if id == "" {
		return fmt.Errorf("%w: empty worker id", ErrInvalidWorker)
	}
	for _, k := range capability.Subscribes {
		if !k.Valid() {
			return fmt.Errorf("%w: %s subscribes to unknown kind %q", ErrInvalidWorker, id, k)
		}
	}

	capability = capability.Clone()
	capability.WorkerID = id

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced := r.capabilities[id]
	if replaced {
		for _, k := range prev.Subscribes {
			r.unsubscribeLocked(k, id)
		}
	}
	r.capabilities[id] = capability
	for _, k := range capability.Subscribes {
		subs, ok := r.subscriptions[k]
		if !ok {
			subs = make(map[string]struct{})
			r.subscriptions[k] = subs
		}
		subs[id] = struct{}{}
	}

	r.logger.Info("worker registered",
		"worker_id", id,
		"subscribes", len(capability.Subscribes),
		"replaced", replaced,
	)
	return nil
}

func (r *Registry) unsubscribeLocked(kind core.EventKind, workerID string) {
	subs, ok := r.subscriptions[kind]
	if !ok {
		return
	}
	delete(subs, workerID)
	if len(subs) == 0 {
		delete(r.subscriptions, kind)
	}
}

// RegisterHandler binds (or rebinds) the handler invoked for events
// delivered to workerID. It may be called before or after Register.
func (r *Registry) RegisterHandler(workerID string, handler core.Handler) error {
	id := strings.TrimSpace(workerID)
	if id == "" {
		return fmt.Errorf("%w: empty worker id", ErrInvalidWorker)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidWorker, id)
	}

	r.mu.Lock()
	r.handlers[id] = handler
	r.mu.Unlock()

	r.logger.Debug("handler bound", "worker_id", id)
	return nil
}

// Capability returns a copy of the worker's declared capability.
func (r *Registry) Capability(workerID string) (core.WorkerCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[workerID]
	if !ok {
		return core.WorkerCapability{}, false
	}
	return c.Clone(), true
}

// Capabilities returns copies of all capabilities ordered by worker id.
func (r *Registry) Capabilities() []core.WorkerCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.WorkerCapability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b core.WorkerCapability) int { return strings.Compare(a.WorkerID, b.WorkerID) })
	return out
}

// Subscribers returns the ids subscribed to kind, sorted.
func (r *Registry) Subscribers(kind core.EventKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.subscriptions[kind])
}

// Deliveries returns the subscribers of kind that have a bound handler,
// skipping exclude (the event's source). Ordered by worker id.
func (r *Registry) Deliveries(kind core.EventKind, exclude string) []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.subscriptions[kind]
	out := make([]Delivery, 0, len(subs))
	for _, id := range sortedKeys(subs) {
		if id == exclude {
			continue
		}
		h, ok := r.handlers[id]
		if !ok {
			continue
		}
		out = append(out, Delivery{WorkerID: id, Handler: h})
	}
	return out
}

// WorkerIDs returns every registered worker id, sorted.
func (r *Registry) WorkerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.capabilities))
	for id := range r.capabilities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
