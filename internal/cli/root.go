// Package cli implements the swarmctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/salesswarm"
	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/config"
	"github.com/hupe1980/salesswarm/logging"
	"github.com/hupe1980/salesswarm/telemetry"
)

// app carries per-invocation state. Every command tree gets its own.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *logging.SwarmLogger
}

// NewRootCommand builds the swarmctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "swarmctl",
		Short: "Inspect and exercise a sales swarm",
		Long: `swarmctl connects to the durable cache of a sales swarm, inspects
cached records and sessions, and runs an in-process demo of the worker
fan-out.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().String("cache-url", "", "cache URL (redis://, rediss://, sqlite://path); overrides config and REDIS_URL")
	_ = a.v.BindPFlag("cache.url", root.PersistentFlags().Lookup("cache-url"))

	root.AddCommand(
		a.newPingCommand(),
		a.newCacheCommand(),
		a.newSessionCommand(),
		a.newDemoCommand(),
	)
	return root
}

// Execute runs swarmctl with the given context.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr()).WithComponent("swarmctl")
	return nil
}

func (a *app) openCache(ctx context.Context) (*cache.Adapter, error) {
	return salesswarm.OpenCache(ctx, a.cfg.Cache.URL, func(o *salesswarm.CacheOptions) {
		o.Password = a.cfg.Cache.Password
		o.Prefix = a.cfg.Cache.Prefix
		o.TTL = a.cfg.Cache.TTL
		o.Logger = a.logger
	})
}

// openSwarm builds a swarm from the loaded config. The returned function
// stops the swarm and flushes traces.
func (a *app) openSwarm(ctx context.Context) (*salesswarm.Swarm, func(context.Context) error, error) {
	tp, shutdown, err := telemetry.Setup(ctx, func(o *telemetry.Options) {
		o.Enabled = a.cfg.Telemetry.Enabled
		o.Endpoint = a.cfg.Telemetry.Endpoint
		o.ServiceName = a.cfg.Telemetry.ServiceName
	})
	if err != nil {
		return nil, nil, err
	}

	s, err := salesswarm.FromConfig(ctx, a.cfg, func(o *salesswarm.Options) {
		o.Logger = a.logger
		o.TracerProvider = tp
	})
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}

	return s, func(ctx context.Context) error {
		if err := s.Close(ctx); err != nil {
			_ = shutdown(ctx)
			return err
		}
		return shutdown(ctx)
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
