package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
	"github.com/taurusgroup/multi-party-ecdh/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ceremonies of the configured wallet over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	if env.cfg.Server == nil {
		return fmt.Errorf("config: no server section")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := env.openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()
	w, err := env.wallet(l)
	if err != nil {
		return err
	}

	opts := []transport.ServerOption{
		transport.WithLogger(env.log),
		transport.WithAllowedOrigins(env.cfg.Server.AllowedOrigins...),
	}
	if env.cfg.Metrics != nil {
		opts = append(opts, transport.WithRequestMetrics(metrics.NewRequestMetrics()))
	}
	server := transport.NewServer(w, opts...)
	env.log.Info().
		Str("wallet", w.Address()).
		Int("owners", len(w.Owners())).
		Int("threshold", w.Threshold()).
		Msg("wallet loaded")

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Run(egCtx, env.cfg.Server.Endpoint)
	})
	if env.cfg.Metrics != nil {
		eg.Go(func() error {
			return metrics.NewPullService(env.cfg.Metrics.PullEndpoint, env.log).Run(egCtx)
		})
	}
	return eg.Wait()
}
