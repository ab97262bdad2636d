package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/salesswarm/core"
	"github.com/hupe1980/salesswarm/workers"
)

func (a *app) newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether the durable cache is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			adapter, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()

			if !adapter.Available() {
				return fmt.Errorf("cache unavailable at %q, running memory-only", a.cfg.Cache.URL)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache available at %s\n", a.cfg.Cache.URL)
			return nil
		},
	}
}

func (a *app) newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read or delete cached records",
	}

	get := &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Print a cached record as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()

			var value any
			ok := adapter.Get(cmd.Context(), args[0], args[1], &value)
			a.logger.LogCacheOp("get", adapter.Key(args[0], args[1]), ok, nil)
			if !ok {
				return fmt.Errorf("%s: not found", adapter.Key(args[0], args[1]))
			}
			return writeJSON(cmd.OutOrStdout(), value)
		},
	}

	del := &cobra.Command{
		Use:   "delete <namespace> <key>",
		Short: "Delete a cached record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()

			key := adapter.Key(args[0], args[1])
			ok := adapter.Delete(cmd.Context(), args[0], args[1])
			a.logger.LogCacheOp("delete", key, ok, nil)
			if !ok {
				return fmt.Errorf("%s: delete failed", key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			return nil
		},
	}

	cmd.AddCommand(get, del)
	return cmd
}

func (a *app) newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect sessions",
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session with its campaign, enrichment and qualification records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, stop, err := a.openSwarm(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stop(cmd.Context()) }()

			data, ok := s.AllSessionData(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("session %s not found", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.AddCommand(show)
	return cmd
}

func (a *app) newDemoCommand() *cobra.Command {
	var (
		profiles   []string
		companyURL string
		campaignID string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the stub workers through one enrichment and company intel request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, stop, err := a.openSwarm(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = stop(ctx) }()

			done := a.logger.StartTimer("demo")
			defer done()

			if err := s.RegisterStubWorkers(); err != nil {
				return err
			}
			sess, _ := s.CreateSession(ctx, "", "demo", map[string]any{"campaign_id": campaignID})
			s.Store().StoreCampaign(ctx, sess.ID, core.Record{"campaign_id": campaignID, "source": "swarmctl demo"})

			payloads := []core.Payload{core.LeadEnrichmentRequested{LinkedInURLs: profiles, CampaignID: campaignID}}
			if companyURL != "" {
				payloads = append(payloads, core.CompanyIntelRequested{CompanyURL: companyURL})
			}
			for _, p := range payloads {
				if err := s.Emit(ctx, sess.ID, workers.ManagerID, p); err != nil {
					return err
				}
			}

			drainCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := s.Drain(drainCtx); err != nil {
				return err
			}

			data, _ := s.AllSessionData(ctx, sess.ID)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"status":  s.Status(),
				"session": data,
			})
		},
	}

	cmd.Flags().StringSliceVar(&profiles, "linkedin-url", []string{"https://www.linkedin.com/in/example"}, "profile URL to enrich (repeatable)")
	cmd.Flags().StringVar(&companyURL, "company-url", "https://example.com", "company website to analyze; empty skips")
	cmd.Flags().StringVar(&campaignID, "campaign", "demo", "campaign id")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for deliveries")
	return cmd
}
