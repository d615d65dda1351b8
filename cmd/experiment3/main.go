package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RaffaelBild/gta-benchmark/internal/app"
	"github.com/RaffaelBild/gta-benchmark/internal/benchmark"
	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "experiment3 <dataset>",
		Short: "Compare quality models under the game-theoretic privacy model",
		Long: `Sweeps adversary gain = publisher loss and, for every quality model,
compares the quality reached under the cost/benefit model with the quality
reached under average and individual re-identification risk thresholds.

Known datasets: ` + strings.Join(benchmark.DatasetNames(), ", "),
		Version:       app.GetBuildInfo().String(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := benchmark.DatasetByName(args[0])
			if err != nil {
				return err
			}
			return app.Execute(cmd.Context(), cfgFile, cmd.Flags(), constants.ExperimentGainLoss,
				func(ctx context.Context, opts experiment.Options) (*experiment.Table, error) {
					return experiment.RunGainLoss(ctx, opts, dataset)
				})
		},
	}

	app.AddFlags(cmd.Flags(), &cfgFile)
	return cmd
}
