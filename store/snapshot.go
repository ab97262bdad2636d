package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/salesswarm/core"
)

// SessionData is the combined view of a session and the records keyed by
// the same id.
type SessionData struct {
	Session       *core.Session `json:"session,omitempty"`
	Campaign      core.Record   `json:"campaign,omitempty"`
	Enrichment    core.Record   `json:"enrichment,omitempty"`
	Qualification core.Record   `json:"qualification,omitempty"`
}

// AllSessionData gathers the session and the campaign, lead enrichment and
// qualification records stored under the session id. Lookups run
// concurrently. The result reports false only when nothing was found.
func (s *Store) AllSessionData(ctx context.Context, id string) (SessionData, bool) {
	var data SessionData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data.Session, _ = s.Session(gctx, id)
		return nil
	})
	g.Go(func() error {
		data.Campaign, _ = s.Campaign(gctx, id)
		return nil
	})
	g.Go(func() error {
		data.Enrichment, _ = s.Lead(gctx, id)
		return nil
	})
	g.Go(func() error {
		data.Qualification, _ = s.Qualification(gctx, id)
		return nil
	})
	_ = g.Wait()

	found := data.Session != nil || data.Campaign != nil || data.Enrichment != nil || data.Qualification != nil
	return data, found
}
