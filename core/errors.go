package core

import "errors"

// ErrInvalidEvent is returned when an event violates its structural invariants.
var ErrInvalidEvent = errors.New("invalid event")
