package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/core"
)

// CreateSession starts a session. An empty id is replaced by a generated
// one. If the id is already known the existing session is returned
// unchanged and created is false; history is never discarded.
func (s *Store) CreateSession(ctx context.Context, id, sessionContext string, metadata map[string]any) (sess *core.Session, created bool) {
	if strings.TrimSpace(id) == "" {
		id = core.NewID()
	}

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		snap := existing.Clone()
		s.mu.Unlock()
		return snap, false
	}
	fresh := core.NewSession(id, sessionContext, metadata)
	s.sessions[id] = fresh
	snap, rev := s.snapshotLocked(fresh)
	s.mu.Unlock()

	s.mirror(ctx, snap, rev)
	s.logger.Info("session created", "session_id", id, "context", sessionContext)
	return snap, true
}

// Session returns a snapshot of the session. Memory is authoritative; the
// cached snapshot is only consulted when this process does not know the id.
func (s *Store) Session(ctx context.Context, id string) (*core.Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		snap := sess.Clone()
		s.mu.Unlock()
		return snap, true
	}
	s.mu.Unlock()

	var cached core.Session
	if s.cache.Get(ctx, cache.NamespaceSession, id, &cached) && cached.ID != "" {
		return &cached, true
	}
	return nil, false
}

// UpdateSession merges patch into the session metadata. It reports false for
// an unknown id and does not create a session.
func (s *Store) UpdateSession(ctx context.Context, id string, patch map[string]any) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess.MergeMetadata(patch)
	snap, rev := s.snapshotLocked(sess)
	s.mu.Unlock()

	s.mirror(ctx, snap, rev)
	return true
}

// EndSession marks the session ended. Ending an ended or unknown session is
// a no-op; the result reports whether the id was known.
func (s *Store) EndSession(ctx context.Context, id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	wasActive := sess.Active()
	sess.End()
	snap, rev := s.snapshotLocked(sess)
	s.mu.Unlock()

	if wasActive {
		s.mirror(ctx, snap, rev)
		s.logger.Info("session ended", "session_id", id, "events", len(snap.Events))
	}
	return true
}

// AppendEvent implements core.SessionLedger.
func (s *Store) AppendEvent(ctx context.Context, id string, summary core.EventSummary) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	summary.DataKeys = append([]string(nil), summary.DataKeys...)
	sess.AddEvent(summary)
	snap, rev := s.snapshotLocked(sess)
	s.mu.Unlock()

	s.mirror(ctx, snap, rev)
	return true
}

// ActiveSessions returns the number of sessions not yet ended.
func (s *Store) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Active() {
			n++
		}
	}
	return n
}

// snapshotLocked copies sess and tags the copy with a revision. s.mu must be
// held.
func (s *Store) snapshotLocked(sess *core.Session) (*core.Session, uint64) {
	s.rev++
	return sess.Clone(), s.rev
}

// mirror hands a session snapshot to the cache without waiting for the
// write. Each session has one pending slot holding its newest snapshot and at
// most one goroutine draining it, so cache writes for a session land in
// revision order and a slow cache never holds up the caller.
func (s *Store) mirror(ctx context.Context, snap *core.Session, rev uint64) {
	if !s.cache.Available() {
		return
	}
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	if rev <= s.mirrored[snap.ID] {
		return
	}
	if p, ok := s.pending[snap.ID]; ok && p.rev >= rev {
		return
	}
	s.pending[snap.ID] = pendingSnapshot{snap: snap, rev: rev}
	if s.draining[snap.ID] {
		return
	}
	s.draining[snap.ID] = true
	if s.drainers == 0 {
		s.flushed = make(chan struct{})
	}
	s.drainers++
	go s.drainMirror(context.WithoutCancel(ctx), snap.ID)
}

func (s *Store) drainMirror(ctx context.Context, id string) {
	for {
		s.mirrorMu.Lock()
		p, ok := s.pending[id]
		if !ok {
			delete(s.draining, id)
			s.drainers--
			if s.drainers == 0 {
				close(s.flushed)
			}
			s.mirrorMu.Unlock()
			return
		}
		delete(s.pending, id)
		// claimed before the write so a late older snapshot is rejected
		s.mirrored[id] = p.rev
		s.mirrorMu.Unlock()

		s.cache.Put(ctx, cache.NamespaceSession, id, p.snap, s.ttl)
	}
}

// Flush waits until every session snapshot handed to the cache so far has
// been written, or until ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	s.mirrorMu.Lock()
	flushed := s.flushed
	s.mirrorMu.Unlock()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("store: flush: %w", ctx.Err())
	}
}
