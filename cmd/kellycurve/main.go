// Command kellycurve generates Kelly premium-vs-utilization curves for
// short option positions from historical price data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kelly-curve-lab/internal/config"
	"kelly-curve-lab/internal/logging"
)

// app carries state shared by subcommands after the root pre-run.
type app struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "kellycurve",
		Short: "Kelly curve generation engine",
		Long: `kellycurve fits a daily return distribution to historical prices, propagates
it to the option expiration, and solves for the premium at which a short
option position of a given utilization has zero Kelly growth edge.

The resulting curves are fitted to a parametric family, clipped to
no-arbitrage bounds, stored and published.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		fmt.Sprintf("path to YAML config (default $%s, then built-in defaults)", config.EnvConfigPath))

	root.AddCommand(
		newGenerateCmd(a),
		newFitCmd(a),
		newPDFCmd(a),
		newServeCmd(a),
		newCovCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
