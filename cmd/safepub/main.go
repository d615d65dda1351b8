package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RaffaelBild/gta-benchmark/internal/app"
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
		Use:   "safepub",
		Short: "Compare differential privacy with k-anonymity by publisher payout",
		Long: `Sweeps adversary gain = publisher loss on the adult dataset and records
the normalized publisher payout of (epsilon, delta)-differential privacy at
three generalization degrees and of k-anonymity for k = 5, 10, 15.`,
		Version:       app.GetBuildInfo().String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Execute(cmd.Context(), cfgFile, cmd.Flags(), constants.ExperimentSafepub, experiment.RunSafepub)
		},
	}

	app.AddFlags(cmd.Flags(), &cfgFile)
	return cmd
}
