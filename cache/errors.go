package cache

import "errors"

var (
	// ErrNotFound is returned by a Backend when no live value exists for a key.
	ErrNotFound = errors.New("cache: key not found")
)
