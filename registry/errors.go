package registry

import "errors"

var (
	// ErrInvalidWorker is returned when a capability or handler cannot be
	// registered (empty worker id, nil handler).
	ErrInvalidWorker = errors.New("registry: invalid worker")
)
