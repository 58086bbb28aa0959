package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/pipeline"
	"kelly-curve-lab/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		pricesPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve curve generation over HTTP",
		Long: `Serve exposes curve generation over HTTP:

  POST /curves          generate one curve
  POST /curves/batch    generate a batch of curves
  GET  /curves          list stored curves (?asset= filters)
  GET  /curves/{id}     fetch one curve
  GET  /ws/progress     websocket stream of boundary progress
  GET  /metrics         Prometheus metrics
  GET  /health          liveness`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			b, err := openBackends(ctx, a.cfg, pricesPath, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)
			engine, err := pipeline.FromConfig(a.cfg, b.prices, metrics, a.log.With().Str("component", "pipeline").Logger())
			if err != nil {
				return err
			}

			srv := server.New(server.Options{
				Engine:    engine,
				Store:     b.curves,
				Publisher: b.publisher,
				Workers:   a.cfg.Batch.Workers,
				Metrics:   metrics,
				Logger:    a.log.With().Str("component", "server").Logger(),
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&pricesPath, "prices", "", "CSV price table to import at startup")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr from config)")
	return cmd
}
