// Package cache implements the durable cache tier behind the state store.
//
// An Adapter wraps a Backend (redis, sqlite or the in-memory test double) and
// turns every failure into a logged, boolean result. Callers treat the cache
// as advisory: a miss, an error and an unavailable backend all look the same,
// and the in-memory copy held by the store remains the fallback of record.
//
// Keys follow the layout "{prefix}:{namespace}:{key}" with values stored as
// JSON documents and an expiry per entry.
package cache
