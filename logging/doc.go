// Package logging provides a minimal logging interface and adapters for the swarm.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the store, cache adapter and dispatcher use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - SwarmLogger with worker/session context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	swarm := salesswarm.New(func(o *salesswarm.Options) { o.Logger = logger })
//
// The interface stays minimal to avoid vendor lock-in while supporting
// structured logging where available.
package logging
