package dispatch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/salesswarm/core"
)

var (
	// ErrClosed is returned by Publish after Close has been called.
	ErrClosed = errors.New("dispatch: dispatcher closed")
)

// DeliveryError describes a handler that failed or panicked while handling
// an event. It is reported to the error sink and never to the publisher.
type DeliveryError struct {
	WorkerID string
	Event    core.Event
	Err      error
	Panicked bool
}

func (e *DeliveryError) Error() string {
	what := "failed"
	if e.Panicked {
		what = "panicked"
	}
	return fmt.Sprintf("worker %s %s handling %s: %v", e.WorkerID, what, e.Event.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
