// Package core provides the foundational domain types and interfaces shared by
// the swarm. It defines the core abstractions for:
//
//   - Events (immutable, typed notifications with a closed set of kinds)
//   - Payloads (one strongly typed variant per event kind)
//   - Worker capabilities and handlers (who reacts to what)
//   - Sessions (lifecycle plus an append-only log of event summaries)
//   - Records (schemaless entity data stored by the state store)
//   - Pluggable durable cache and session ledger contracts
//
// The package keeps implementation concerns (persistence, dispatch, caching)
// out of scope, exposing small interfaces so backends and dispatch can be
// swapped independently.
package core
