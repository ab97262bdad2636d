package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/salesswarm/core"
)

// Delivery is one handler invocation captured by a Recorder.
type Delivery struct {
	WorkerID string
	Event    core.Event
}

// Recorder captures handler invocations. It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handler returns a handler that records each call and then returns err.
func (r *Recorder) Handler(err error) core.Handler {
	return func(_ context.Context, workerID string, ev core.Event) error {
		r.mu.Lock()
		r.deliveries = append(r.deliveries, Delivery{WorkerID: workerID, Event: ev})
		r.mu.Unlock()
		return err
	}
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// CountFor returns how many deliveries went to workerID.
func (r *Recorder) CountFor(workerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.deliveries {
		if d.WorkerID == workerID {
			n++
		}
	}
	return n
}

// Len returns the number of recorded deliveries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}
